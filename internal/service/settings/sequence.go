package settings

// NextInvoiceNumber splits the office invoice sequence into the number to
// use now and the value to store for the next invoice. The trailing digits
// are incremented keeping their width ("FA-0099" gives "FA-0099" then
// "FA-0100"). A sequence without trailing digits gets "1" appended first.
func NextInvoiceNumber(seq string) (current, next string) {
	i := len(seq)
	for i > 0 && seq[i-1] >= '0' && seq[i-1] <= '9' {
		i--
	}
	if i == len(seq) {
		seq += "1"
	}
	return seq, increment(seq, i)
}

// increment adds one to the decimal digits of s starting at index from.
func increment(s string, from int) string {
	b := []byte(s)
	for j := len(b) - 1; j >= from; j-- {
		if b[j] < '9' {
			b[j]++
			return string(b)
		}
		b[j] = '0'
	}
	// every digit carried over
	return string(b[:from]) + "1" + string(b[from:])
}
