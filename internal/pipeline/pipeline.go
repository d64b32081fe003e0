// Package pipeline defines engine-neutral aggregation pipelines: an
// ordered list of typed stage descriptors applied to one primary
// collection. Storage engines translate the descriptors into their own
// query form; the descriptors themselves never contain engine syntax.
package pipeline

// Pipeline is an ordered sequence of stages. Stages execute strictly in
// order; Count and Sum are terminal and must appear last.
type Pipeline []Stage

// Stage is a single declarative transform over the working document set.
type Stage interface {
	stage()
}

// Match keeps documents whose fields equal the filter values. Filter
// keys may use dot paths ("video.owner"); Exists names top-level fields
// that must be present.
type Match struct {
	Filter map[string]any
	Exists []string
}

// Skip drops the first N documents.
type Skip struct {
	N int
}

// Limit keeps at most the first N documents.
type Limit struct {
	N int
}

// Sort orders documents by a top-level field. Ordering is stable: ties
// preserve the prior order.
type Sort struct {
	Field string
	Desc  bool
}

// Lookup joins documents from another collection whose ForeignField
// equals this document's LocalField, collecting matches into the As
// array field. Project, when set, restricts joined documents to the
// listed fields.
type Lookup struct {
	From         string
	LocalField   string
	ForeignField string
	As           string
	Project      []string
}

// Unwind replaces each document with one copy per element of the named
// array field, the field set to that element. Documents whose array is
// empty or absent are dropped.
type Unwind struct {
	Field string
}

// Flatten collapses an array field produced by a Lookup to its first
// element. When the array is empty the field is removed entirely, so a
// one-to-one join never leaks an array or a null into the response.
type Flatten struct {
	Field string
}

// AddCount sets Field to the length of the array field Of.
type AddCount struct {
	Field string
	Of    string
}

// Contains sets Field to whether any element of the array field In has
// Key equal to Value.
type Contains struct {
	Field string
	In    string
	Key   string
	Value any
}

// Set copies the value at From into Field. Both may be dot paths.
type Set struct {
	Field string
	From  string
}

// ReplaceRoot promotes the object at Field to be the whole document.
// Documents missing the field are dropped.
type ReplaceRoot struct {
	Field string
}

// Project restricts documents to the Include fields, or removes the
// Exclude fields. Exactly one of the two lists should be set.
type Project struct {
	Include []string
	Exclude []string
}

// Count terminates the pipeline with a single document {As: n}.
type Count struct {
	As string
}

// Sum terminates the pipeline with a single document {As: total} where
// total is the numeric sum of Field across all documents.
type Sum struct {
	As    string
	Field string
}

func (Match) stage()       {}
func (Skip) stage()        {}
func (Limit) stage()       {}
func (Sort) stage()        {}
func (Lookup) stage()      {}
func (Unwind) stage()      {}
func (Flatten) stage()     {}
func (AddCount) stage()    {}
func (Contains) stage()    {}
func (Set) stage()         {}
func (ReplaceRoot) stage() {}
func (Project) stage()     {}
func (Count) stage()       {}
func (Sum) stage()         {}

const (
	// DefaultPage is the 1-indexed page applied when the caller omits one.
	DefaultPage = 1
	// DefaultPageSize bounds list responses when the caller omits a size.
	DefaultPageSize = 10
)

// Page describes 1-indexed pagination for list pipelines.
type Page struct {
	Number int
	Size   int
}

// Normalize applies the defaults for out-of-range values.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = DefaultPage
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	return p
}

// Offset computes how many documents precede the requested page.
func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Number - 1) * p.Size
}

// Paginate appends the Skip and Limit stages for the page. Every list
// pipeline must pass through here before execution.
func (pl Pipeline) Paginate(p Page) Pipeline {
	p = p.Normalize()
	return append(pl, Skip{N: p.Offset()}, Limit{N: p.Size})
}
