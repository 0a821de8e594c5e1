package extract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pyhub-apps/pdftext-golang/pkg/parser"
)

// PageError records a page whose text could not be extracted. It never
// aborts a run.
type PageError struct {
	Page int
	Ref  parser.ObjectRef
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("could not extract text from page %d id=%s: %v", e.Page, e.Ref.ID(), e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// PageOutcome is what a worker reports for one page: Lines on success,
// Err on failure
type PageOutcome struct {
	Page     int
	Ref      parser.ObjectRef
	Lines    []string
	Err      *PageError
	Fallback bool
}

// Report is the merged result of an extraction run
type Report struct {
	// Pages maps page numbers to their lower-cased lines
	Pages map[int][]string

	// Errors holds the failed pages ordered by page number
	Errors []*PageError

	// Fallbacks counts pages recovered by the fallback service
	Fallbacks int
}

func newReport() *Report {
	return &Report{Pages: make(map[int][]string)}
}

func (r *Report) add(o PageOutcome) {
	if o.Err != nil {
		r.Errors = append(r.Errors, o.Err)
		return
	}
	r.Pages[o.Page] = o.Lines
	if o.Fallback {
		r.Fallbacks++
	}
}

func (r *Report) finalize() {
	sort.SliceStable(r.Errors, func(i, j int) bool {
		return r.Errors[i].Page < r.Errors[j].Page
	})
}

// PageNumbers returns the extracted page numbers in ascending order
func (r *Report) PageNumbers() []int {
	nums := make([]int, 0, len(r.Pages))
	for n := range r.Pages {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// Text joins the lines of each page with sep and then the non-empty
// pages, in page order, with sep
func (r *Report) Text(sep string) string {
	var parts []string
	for _, n := range r.PageNumbers() {
		if page := strings.Join(r.Pages[n], sep); page != "" {
			parts = append(parts, page)
		}
	}
	return strings.Join(parts, sep)
}

// ErrorMessages returns the messages of the first limit errors, or of
// all of them when limit is not positive
func (r *Report) ErrorMessages(limit int) []string {
	n := len(r.Errors)
	if limit > 0 && limit < n {
		n = limit
	}
	msgs := make([]string, n)
	for i := 0; i < n; i++ {
		msgs[i] = r.Errors[i].Error()
	}
	return msgs
}
