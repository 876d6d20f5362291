package utils

// Page describes one window over a list of total items.
type Page struct {
	Number int
	Pages  int
	Start  int
	End    int
}

// Paginate clamps the requested page into range and returns the slice
// bounds for it. Pages are zero-based; perPage must be positive.
func Paginate(total, page, perPage int) Page {
	if perPage <= 0 {
		perPage = 1
	}
	pages := (total + perPage - 1) / perPage
	if pages == 0 {
		pages = 1
	}
	if page < 0 {
		page = 0
	}
	if page >= pages {
		page = pages - 1
	}
	start := page * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return Page{Number: page, Pages: pages, Start: start, End: end}
}
