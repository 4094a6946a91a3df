package view

import "strconv"

// PostsPerPage is the page size the post list asks for.
const PostsPerPage = 10

// TotalPages is ceil(count/pageSize), never below 1.
func TotalPages(count, pageSize int) int {
	if pageSize < 1 {
		return 1
	}
	pages := (count + pageSize - 1) / pageSize
	if pages < 1 {
		return 1
	}
	return pages
}

// ParsePage reads a page number from a query value. Anything other than a
// positive integer is page 1.
func ParsePage(raw string) int {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}
