// Package invoicechain resolves the cancellation chains of the invoices
// attached to an examination.
//
// An invoice cancelled by another points to it through CanceledBy. Following
// those links from any invoice reaches the tail of its chain; the tail is the
// live invoice when it is of type "invoice", and nothing is live when the
// tail is a credit note.
package invoicechain

import (
	stderrors "errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/jwalitptl/osteo-api/internal/model"
	"github.com/jwalitptl/osteo-api/pkg/errors"
)

var (
	// ErrCycle is wrapped by the error returned when a chain loops back on itself.
	ErrCycle = stderrors.New("invoice cancellation chain is cyclic")
	// ErrBrokenChain is wrapped by the error returned when a successor is missing.
	ErrBrokenChain = stderrors.New("invoice cancellation chain is broken")
)

// Index gives access to every invoice reachable from a set of invoices.
type Index map[uuid.UUID]*model.Invoice

// NewIndex indexes invoices by id.
func NewIndex(invoices ...*model.Invoice) Index {
	idx := make(Index, len(invoices))
	for _, inv := range invoices {
		idx[inv.ID] = inv
	}
	return idx
}

func (idx Index) next(inv *model.Invoice) (*model.Invoice, error) {
	if inv.CanceledBy == nil {
		return nil, nil
	}
	next, ok := idx[*inv.CanceledBy]
	if !ok {
		return nil, errors.NewDataIntegrity(
			fmt.Sprintf("invoice %s is canceled by unknown invoice %s", inv.ID, *inv.CanceledBy),
			ErrBrokenChain,
		)
	}
	return next, nil
}

func cycleError(start uuid.UUID) error {
	return errors.NewDataIntegrity(
		fmt.Sprintf("cancellation chain of invoice %s loops", start),
		ErrCycle,
	)
}

// ResolveToLive follows the chain of inv to its tail. It returns the tail if
// it is an invoice and nil if it is a credit note.
func ResolveToLive(idx Index, inv *model.Invoice) (*model.Invoice, error) {
	visited := make(map[uuid.UUID]struct{})
	cur := inv
	for {
		if _, seen := visited[cur.ID]; seen {
			return nil, cycleError(inv.ID)
		}
		visited[cur.ID] = struct{}{}

		next, err := idx.next(cur)
		if err != nil {
			return nil, err
		}
		if next == nil {
			break
		}
		cur = next
	}
	if cur.Type != model.InvoiceTypeInvoice {
		return nil, nil
	}
	return cur, nil
}

// LastInvoice returns the invoice that currently stands for the examination.
// The most recently dated associated invoice is taken (the later one in
// input order on equal dates); when it was cancelled its chain is resolved.
func LastInvoice(idx Index, associated []*model.Invoice) (*model.Invoice, error) {
	var latest *model.Invoice
	for _, inv := range associated {
		if latest == nil || !inv.Date.Before(latest.Date) {
			latest = inv
		}
	}
	if latest == nil {
		return nil, nil
	}
	if latest.CanceledBy == nil {
		return latest, nil
	}
	return ResolveToLive(idx, latest)
}

// InvoiceNumber returns the number of the last invoice, false when there is
// none.
func InvoiceNumber(idx Index, associated []*model.Invoice) (string, bool, error) {
	last, err := LastInvoice(idx, associated)
	if err != nil || last == nil {
		return "", false, err
	}
	return last.Number, true, nil
}

// History lists every invoice of the examination's chains, newest walk
// first, without the last invoice.
func History(idx Index, associated []*model.Invoice) ([]*model.Invoice, error) {
	sorted := make([]*model.Invoice, len(associated))
	copy(sorted, associated)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	list := make([]*model.Invoice, 0, len(sorted))
	collected := make(map[uuid.UUID]struct{}, len(sorted))
	for _, start := range sorted {
		walk := make(map[uuid.UUID]struct{})
		cur := start
		for cur != nil {
			if _, seen := walk[cur.ID]; seen {
				return nil, cycleError(start.ID)
			}
			walk[cur.ID] = struct{}{}

			// chains are linear, the rest of this one is already listed
			if _, seen := collected[cur.ID]; seen {
				break
			}
			collected[cur.ID] = struct{}{}
			list = append(list, cur)

			next, err := idx.next(cur)
			if err != nil {
				return nil, err
			}
			cur = next
		}
	}

	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}

	last, err := LastInvoice(idx, associated)
	if err != nil {
		return nil, err
	}
	if last != nil {
		for i, inv := range list {
			if inv.ID == last.ID {
				list = append(list[:i], list[i+1:]...)
				break
			}
		}
	}
	return list, nil
}

// View computes the number, last invoice and history in one pass over the
// same index.
func View(idx Index, associated []*model.Invoice) (*model.InvoiceView, error) {
	last, err := LastInvoice(idx, associated)
	if err != nil {
		return nil, err
	}
	history, err := History(idx, associated)
	if err != nil {
		return nil, err
	}
	view := &model.InvoiceView{LastInvoice: last, InvoicesList: history}
	if last != nil {
		view.Number = last.Number
	}
	return view, nil
}
