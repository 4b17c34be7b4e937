package invoicechain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/osteo-api/internal/model"
	"github.com/jwalitptl/osteo-api/pkg/errors"
)

var day0 = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func newInvoice(number string, daysAfter int, typ string) *model.Invoice {
	inv := &model.Invoice{
		Number: number,
		Date:   day0.AddDate(0, 0, daysAfter),
		Type:   typ,
	}
	inv.ID = uuid.New()
	return inv
}

func cancel(inv, by *model.Invoice) {
	id := by.ID
	inv.CanceledBy = &id
	inv.Status = model.InvoiceStatusCanceled
}

func numbers(list []*model.Invoice) []string {
	out := make([]string, 0, len(list))
	for _, inv := range list {
		out = append(out, inv.Number)
	}
	return out
}

func TestResolveToLive(t *testing.T) {
	t.Run("no successor invoice", func(t *testing.T) {
		a := newInvoice("A", 0, model.InvoiceTypeInvoice)
		live, err := ResolveToLive(NewIndex(a), a)
		require.NoError(t, err)
		assert.Same(t, a, live)
	})

	t.Run("no successor credit note", func(t *testing.T) {
		a := newInvoice("A", 0, model.InvoiceTypeCreditNote)
		live, err := ResolveToLive(NewIndex(a), a)
		require.NoError(t, err)
		assert.Nil(t, live)
	})

	t.Run("same tail from every node", func(t *testing.T) {
		chain := []*model.Invoice{
			newInvoice("1", 0, model.InvoiceTypeInvoice),
			newInvoice("2", 1, model.InvoiceTypeInvoice),
			newInvoice("3", 2, model.InvoiceTypeInvoice),
			newInvoice("4", 3, model.InvoiceTypeInvoice),
		}
		for i := 0; i < len(chain)-1; i++ {
			cancel(chain[i], chain[i+1])
		}
		idx := NewIndex(chain...)
		for _, start := range chain {
			live, err := ResolveToLive(idx, start)
			require.NoError(t, err)
			assert.Same(t, chain[3], live)
		}
	})

	t.Run("chain ending on a credit note", func(t *testing.T) {
		a := newInvoice("A", 0, model.InvoiceTypeInvoice)
		cn := newInvoice("CN", 1, model.InvoiceTypeCreditNote)
		cancel(a, cn)
		live, err := ResolveToLive(NewIndex(a, cn), a)
		require.NoError(t, err)
		assert.Nil(t, live)
	})

	t.Run("cycle", func(t *testing.T) {
		a := newInvoice("A", 0, model.InvoiceTypeInvoice)
		b := newInvoice("B", 1, model.InvoiceTypeInvoice)
		cancel(a, b)
		cancel(b, a)
		_, err := ResolveToLive(NewIndex(a, b), a)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCycle)
		assert.True(t, errors.HasCode(err, errors.ErrDataIntegrity))
	})

	t.Run("self reference", func(t *testing.T) {
		a := newInvoice("A", 0, model.InvoiceTypeInvoice)
		cancel(a, a)
		_, err := ResolveToLive(NewIndex(a), a)
		assert.ErrorIs(t, err, ErrCycle)
	})

	t.Run("broken link", func(t *testing.T) {
		a := newInvoice("A", 0, model.InvoiceTypeInvoice)
		missing := newInvoice("X", 1, model.InvoiceTypeInvoice)
		cancel(a, missing)
		_, err := ResolveToLive(NewIndex(a), a)
		assert.ErrorIs(t, err, ErrBrokenChain)
		assert.True(t, errors.HasCode(err, errors.ErrDataIntegrity))
	})
}

func TestNoInvoices(t *testing.T) {
	idx := NewIndex()

	last, err := LastInvoice(idx, nil)
	require.NoError(t, err)
	assert.Nil(t, last)

	number, ok, err := InvoiceNumber(idx, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, number)

	history, err := History(idx, nil)
	require.NoError(t, err)
	require.NotNil(t, history)
	assert.Empty(t, history)
}

func TestSingleInvoice(t *testing.T) {
	a := newInvoice("A", 0, model.InvoiceTypeInvoice)
	idx := NewIndex(a)
	associated := []*model.Invoice{a}

	last, err := LastInvoice(idx, associated)
	require.NoError(t, err)
	assert.Same(t, a, last)

	number, ok, err := InvoiceNumber(idx, associated)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "A", number)

	history, err := History(idx, associated)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestReissuedInvoiceBothAssociated(t *testing.T) {
	a := newInvoice("A", 0, model.InvoiceTypeInvoice)
	b := newInvoice("B", 1, model.InvoiceTypeInvoice)
	cancel(a, b)
	idx := NewIndex(a, b)
	associated := []*model.Invoice{b, a}

	live, err := ResolveToLive(idx, a)
	require.NoError(t, err)
	assert.Same(t, b, live)

	last, err := LastInvoice(idx, associated)
	require.NoError(t, err)
	assert.Same(t, b, last)

	history, err := History(idx, associated)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, numbers(history))
}

func TestChainPlusOlderStandalone(t *testing.T) {
	c := newInvoice("C", 0, model.InvoiceTypeInvoice)
	a := newInvoice("A", 2, model.InvoiceTypeInvoice)
	b := newInvoice("B", 3, model.InvoiceTypeInvoice)
	cancel(a, b)
	idx := NewIndex(a, b, c)
	associated := []*model.Invoice{a, c}

	last, err := LastInvoice(idx, associated)
	require.NoError(t, err)
	assert.Same(t, b, last)

	history, err := History(idx, associated)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, numbers(history))
	for _, inv := range history {
		assert.NotEqual(t, last.ID, inv.ID)
	}
}

func TestCreditNoteTail(t *testing.T) {
	a := newInvoice("A", 0, model.InvoiceTypeInvoice)
	cn := newInvoice("CN", 1, model.InvoiceTypeCreditNote)
	cancel(a, cn)
	idx := NewIndex(a, cn)
	associated := []*model.Invoice{a}

	last, err := LastInvoice(idx, associated)
	require.NoError(t, err)
	assert.Nil(t, last)

	_, ok, err := InvoiceNumber(idx, associated)
	require.NoError(t, err)
	assert.False(t, ok)

	history, err := History(idx, associated)
	require.NoError(t, err)
	assert.Equal(t, []string{"CN", "A"}, numbers(history))
}

func TestLastInvoiceTieBreak(t *testing.T) {
	first := newInvoice("first", 0, model.InvoiceTypeInvoice)
	second := newInvoice("second", 0, model.InvoiceTypeInvoice)

	last, err := LastInvoice(NewIndex(first, second), []*model.Invoice{first, second})
	require.NoError(t, err)
	assert.Same(t, second, last)
}

func TestHistoryErrors(t *testing.T) {
	a := newInvoice("A", 0, model.InvoiceTypeInvoice)
	b := newInvoice("B", 1, model.InvoiceTypeInvoice)
	cancel(a, b)
	cancel(b, a)

	_, err := History(NewIndex(a, b), []*model.Invoice{a})
	assert.ErrorIs(t, err, ErrCycle)

	c := newInvoice("C", 0, model.InvoiceTypeInvoice)
	ghost := newInvoice("ghost", 1, model.InvoiceTypeInvoice)
	cancel(c, ghost)
	_, err = History(NewIndex(c), []*model.Invoice{c})
	assert.ErrorIs(t, err, ErrBrokenChain)
}

func TestView(t *testing.T) {
	a := newInvoice("A", 0, model.InvoiceTypeInvoice)
	b := newInvoice("B", 1, model.InvoiceTypeInvoice)
	cancel(a, b)

	view, err := View(NewIndex(a, b), []*model.Invoice{a, b})
	require.NoError(t, err)
	assert.Equal(t, "B", view.Number)
	assert.Same(t, b, view.LastInvoice)
	assert.Equal(t, []string{"A"}, numbers(view.InvoicesList))

	empty, err := View(NewIndex(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Number)
	assert.Nil(t, empty.LastInvoice)
	assert.NotNil(t, empty.InvoicesList)
}
