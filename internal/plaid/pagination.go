package plaid

import "context"

// fetchFn requests one page from the provider. Offset-style pagers pass an
// offset; cursor-style pagers pass the continuation token.
type fetchFn func(ctx context.Context, offset int, cursor string) (*transactionsPage, error)

// pager yields provider pages one at a time. The boolean reports whether
// the provider considers this the last page; the fetch loop applies its own
// stop rules (limit, safety ceiling, empty page) on top.
type pager interface {
	next(ctx context.Context) (*transactionsPage, bool, error)
}

// newPager picks a pagination strategy from the shape of the first
// response: a total count means the offset style, a has_more flag means
// the cursor style. A response carrying neither is a single page.
func newPager(first *transactionsPage, fetch fetchFn) pager {
	switch {
	case first.TotalTransactions != nil:
		return &offsetPager{first: first, fetch: fetch, total: *first.TotalTransactions}
	case first.HasMore != nil:
		return &cursorPager{first: first, fetch: fetch}
	default:
		return &singlePage{page: first}
	}
}

// offsetPager walks the offset + total_transactions style: keep requesting
// with a growing offset until it reaches the reported total.
type offsetPager struct {
	fetch  fetchFn
	first  *transactionsPage
	offset int
	total  int
}

func (p *offsetPager) next(ctx context.Context) (*transactionsPage, bool, error) {
	page := p.first
	p.first = nil
	if page == nil {
		var err error
		page, err = p.fetch(ctx, p.offset, "")
		if err != nil {
			return nil, false, err
		}
	}

	p.offset += len(page.Transactions)
	if page.TotalTransactions != nil {
		p.total = *page.TotalTransactions
	}
	return page, p.offset >= p.total, nil
}

// cursorPager walks the next_cursor + has_more style: pass the last cursor
// back until the provider reports no more data.
type cursorPager struct {
	fetch  fetchFn
	first  *transactionsPage
	cursor string
}

func (p *cursorPager) next(ctx context.Context) (*transactionsPage, bool, error) {
	page := p.first
	p.first = nil
	if page == nil {
		var err error
		page, err = p.fetch(ctx, 0, p.cursor)
		if err != nil {
			return nil, false, err
		}
	}

	p.cursor = page.NextCursor
	done := page.HasMore == nil || !*page.HasMore
	return page, done, nil
}

// singlePage serves a response that carries no pagination signal at all.
type singlePage struct {
	page *transactionsPage
}

func (p *singlePage) next(context.Context) (*transactionsPage, bool, error) {
	page := p.page
	if page == nil {
		return &transactionsPage{}, true, nil
	}
	p.page = nil
	return page, true, nil
}
