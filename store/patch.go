package store

// Patch describes the changes of one conditional update.
// Each attribute may appear in only one of the maps.
type Patch struct {
	Set           map[string]interface{} // replace values; a StringSet is written as a set
	Remove        []string               // drop attributes
	Add           map[string]float64     // atomic numeric add
	AddToSet      map[string][]string    // string set union
	DeleteFromSet map[string][]string    // string set difference
	Append        map[string][]string    // append to a list, creating it when missing
}

// VersionField is bumped by every write so change consumers can order images of one document
const VersionField = "version"

// versioned returns p with the version bump added
func versioned(p Patch) Patch {
	add := make(map[string]float64, len(p.Add)+1)
	for field, delta := range p.Add {
		add[field] = delta
	}
	add[VersionField] = 1
	p.Add = add
	return p
}

// StringSet marks a Set value that must be stored as a string set rather than a list
type StringSet []string

// IsEmpty reports whether the patch changes nothing
func (p Patch) IsEmpty() bool {
	return len(p.Set) == 0 && len(p.Remove) == 0 && len(p.Add) == 0 &&
		len(p.AddToSet) == 0 && len(p.DeleteFromSet) == 0 && len(p.Append) == 0
}

// Op is a comparison used in conditions and query filters
type Op int

const (
	OpEquals Op = iota
	OpNotEquals
	OpContains
	OpNotContains
	OpExists
	OpNotExists
	OpLessOrEqual
)

// Condition is one expectation about a stored attribute
type Condition struct {
	Field string
	Op    Op
	Value interface{}
}

// Conditions are ANDed together
type Conditions []Condition

func Eq(field string, v interface{}) Condition          { return Condition{Field: field, Op: OpEquals, Value: v} }
func Ne(field string, v interface{}) Condition          { return Condition{Field: field, Op: OpNotEquals, Value: v} }
func Contains(field string, v interface{}) Condition    { return Condition{Field: field, Op: OpContains, Value: v} }
func NotContains(field string, v interface{}) Condition { return Condition{Field: field, Op: OpNotContains, Value: v} }
func Exists(field string) Condition                     { return Condition{Field: field, Op: OpExists} }
func NotExists(field string) Condition                  { return Condition{Field: field, Op: OpNotExists} }
func Lte(field string, v interface{}) Condition         { return Condition{Field: field, Op: OpLessOrEqual, Value: v} }
