package indexing

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/adfharrison1/restodb/pkg/domain"
)

// IndexEngine holds the named indexes of every collection of the in-process store.
// It is not safe for concurrent use; the storage engine serialises access.
type IndexEngine struct {
	indexes map[string]map[string]*Index // Collection name -> index name -> index
	order   map[string][]string          // Collection name -> index names in creation order
}

// NewIndexEngine creates a new index engine
func NewIndexEngine() *IndexEngine {
	return &IndexEngine{
		indexes: make(map[string]map[string]*Index),
		order:   make(map[string][]string),
	}
}

type entry struct {
	key []interface{}
	id  string
}

// Index is a named index. Scalar keys live in a sorted slice of key tuples;
// text keys live in an inverted token list.
type Index struct {
	Spec    domain.IndexSpec
	entries []entry
	tokens  map[string]map[string]struct{}
}

// NewIndex creates an empty index for spec.
func NewIndex(spec domain.IndexSpec) *Index {
	idx := &Index{Spec: spec.Clone()}
	if spec.HasText() {
		idx.tokens = make(map[string]map[string]struct{})
	}
	return idx
}

// Len returns the number of index entries.
func (idx *Index) Len() int {
	if idx.tokens != nil {
		n := 0
		for _, ids := range idx.tokens {
			n += len(ids)
		}
		return n
	}
	return len(idx.entries)
}

// BuildIndex indexes all documents in a collection, in id order.
func (idx *Index) BuildIndex(collection *domain.Collection) error {
	ids := make([]string, 0, len(collection.Documents))
	for id := range collection.Documents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := idx.insert(id, collection.Documents[id]); err != nil {
			return err
		}
	}
	return nil
}

func (idx *Index) keyOf(doc domain.Document) ([]interface{}, bool) {
	key := make([]interface{}, len(idx.Spec.Keys))
	present := false
	for i, k := range idx.Spec.Keys {
		if v, ok := LookupField(doc, k.Field); ok {
			key[i] = v
			present = true
		}
	}
	if idx.Spec.Options.Sparse && !present {
		return nil, false
	}
	return key, true
}

func (idx *Index) compare(a, b []interface{}, n int) int {
	for i := 0; i < n; i++ {
		c := CompareValues(a[i], b[i])
		if idx.Spec.Keys[i].Kind == domain.Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// CheckUnique reports a duplicate key error if doc would violate the index.
func (idx *Index) CheckUnique(docID string, doc domain.Document) error {
	if !idx.Spec.Unique || idx.tokens != nil || doc == nil {
		return nil
	}
	key, ok := idx.keyOf(doc)
	if !ok {
		return nil
	}
	lo, hi := idx.rangeOf(key)
	for _, e := range idx.entries[lo:hi] {
		if e.id != docID {
			return fmt.Errorf("%w: E11000 duplicate key error index: %s dup key: %v", domain.ErrIndexConflict, idx.Spec.Name, key)
		}
	}
	return nil
}

func (idx *Index) insert(docID string, doc domain.Document) error {
	if idx.tokens != nil {
		for _, field := range idx.textFields() {
			v, _ := LookupField(doc, field)
			s, _ := v.(string)
			for _, tok := range Tokenize(s) {
				if idx.tokens[tok] == nil {
					idx.tokens[tok] = make(map[string]struct{})
				}
				idx.tokens[tok][docID] = struct{}{}
			}
		}
		return nil
	}
	if err := idx.CheckUnique(docID, doc); err != nil {
		return err
	}
	key, ok := idx.keyOf(doc)
	if !ok {
		return nil
	}
	n := len(key)
	pos := sort.Search(len(idx.entries), func(i int) bool {
		c := idx.compare(idx.entries[i].key, key, n)
		return c > 0 || (c == 0 && idx.entries[i].id >= docID)
	})
	idx.entries = append(idx.entries, entry{})
	copy(idx.entries[pos+1:], idx.entries[pos:])
	idx.entries[pos] = entry{key: key, id: docID}
	return nil
}

func (idx *Index) remove(docID string, doc domain.Document) {
	if idx.tokens != nil {
		for _, ids := range idx.tokens {
			delete(ids, docID)
		}
		return
	}
	key, ok := idx.keyOf(doc)
	if !ok {
		return
	}
	lo, hi := idx.rangeOf(key)
	for i := lo; i < hi; i++ {
		if idx.entries[i].id == docID {
			idx.entries = append(idx.entries[:i], idx.entries[i+1:]...)
			return
		}
	}
}

// UpdateIndex updates index after an insert/update/delete operation.
func (idx *Index) UpdateIndex(docID string, oldDoc, newDoc domain.Document) error {
	if oldDoc != nil {
		idx.remove(docID, oldDoc)
	}
	if newDoc != nil {
		return idx.insert(docID, newDoc)
	}
	return nil
}

func (idx *Index) rangeOf(prefix []interface{}) (int, int) {
	n := len(prefix)
	lo := sort.Search(len(idx.entries), func(i int) bool {
		return idx.compare(idx.entries[i].key, prefix, n) >= 0
	})
	hi := sort.Search(len(idx.entries), func(i int) bool {
		return idx.compare(idx.entries[i].key, prefix, n) > 0
	})
	return lo, hi
}

// EqualityPrefix returns the filter values covering the leading scalar keys
// of the index, stopping at the first key the filter does not pin to a literal.
func (idx *Index) EqualityPrefix(filter domain.Document) []interface{} {
	if idx.tokens != nil {
		return nil
	}
	var prefix []interface{}
	for _, k := range idx.Spec.Keys {
		if k.Kind != domain.Ascending && k.Kind != domain.Descending {
			break
		}
		v, ok := filter[k.Field]
		if !ok || IsOperatorDoc(v) {
			break
		}
		prefix = append(prefix, v)
	}
	return prefix
}

// Scan returns the ids whose keys start with prefix, in index order, and the
// number of index keys examined.
func (idx *Index) Scan(prefix []interface{}, reverse bool) ([]string, int) {
	lo, hi := idx.rangeOf(prefix)
	ids := make([]string, 0, hi-lo)
	if reverse {
		for i := hi - 1; i >= lo; i-- {
			ids = append(ids, idx.entries[i].id)
		}
	} else {
		for i := lo; i < hi; i++ {
			ids = append(ids, idx.entries[i].id)
		}
	}
	return ids, hi - lo
}

// ProvidesSort reports whether walking the index after an equality prefix of
// length n yields documents in the requested order, and in which direction.
func (idx *Index) ProvidesSort(n int, order []domain.SortField) (ok bool, reverse bool) {
	if len(order) == 0 || idx.tokens != nil {
		return false, false
	}
	if n+len(order) > len(idx.Spec.Keys) {
		return false, false
	}
	for i, s := range order {
		k := idx.Spec.Keys[n+i]
		if k.Field != s.Field || (k.Kind != domain.Ascending && k.Kind != domain.Descending) {
			return false, false
		}
		flipped := (k.Kind == domain.Descending) != s.Desc
		if i == 0 {
			reverse = flipped
		} else if flipped != reverse {
			return false, false
		}
	}
	return true, reverse
}

// SearchText returns ids of documents containing any token of query, sorted,
// and the number of postings examined.
func (idx *Index) SearchText(query string) ([]string, int) {
	if idx.tokens == nil {
		return nil, 0
	}
	seen := make(map[string]struct{})
	examined := 0
	for _, tok := range Tokenize(query) {
		for id := range idx.tokens[tok] {
			examined++
			seen[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, examined
}

func (idx *Index) textFields() []string {
	var fields []string
	for _, k := range idx.Spec.Keys {
		if k.Kind == domain.Text {
			fields = append(fields, k.Field)
		}
	}
	return fields
}

// Tokenize lower-cases s and splits it into words of at least two runes.
func Tokenize(s string) []string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := words[:0]
	for _, w := range words {
		if len([]rune(w)) >= 2 {
			out = append(out, w)
		}
	}
	return out
}

// CreateIndex creates and builds a named index on a collection. Creating an
// index that already exists with the same shape is a no-op.
func (ie *IndexEngine) CreateIndex(collectionName string, spec domain.IndexSpec, collection *domain.Collection) error {
	if err := validateSpec(spec); err != nil {
		return err
	}
	if ie.indexes[collectionName] == nil {
		ie.indexes[collectionName] = make(map[string]*Index)
	}

	if existing, exists := ie.indexes[collectionName][spec.Name]; exists {
		if domain.SameShape(existing.Spec, spec) {
			return nil
		}
		return fmt.Errorf("%w: an index named %s already exists in collection %s with different keys or options",
			domain.ErrIndexConflict, spec.Name, collectionName)
	}
	for _, name := range ie.order[collectionName] {
		other := ie.indexes[collectionName][name]
		if other.Spec.KeySignature() == spec.KeySignature() {
			return fmt.Errorf("%w: index already exists with a different name: %s", domain.ErrIndexConflict, name)
		}
		if other.Spec.HasText() && spec.HasText() {
			return fmt.Errorf("%w: collection %s already has text index %s", domain.ErrIndexConflict, collectionName, name)
		}
	}

	index := NewIndex(spec)
	if collection != nil {
		if err := index.BuildIndex(collection); err != nil {
			return err
		}
	}
	ie.indexes[collectionName][spec.Name] = index
	ie.order[collectionName] = append(ie.order[collectionName], spec.Name)
	return nil
}

func validateSpec(spec domain.IndexSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("%w: index name cannot be empty", domain.ErrInvalidSpec)
	}
	if len(spec.Keys) == 0 {
		return fmt.Errorf("%w: index %s has no keys", domain.ErrInvalidSpec, spec.Name)
	}
	for _, k := range spec.Keys {
		if k.Field == "" || !k.Kind.Valid() {
			return fmt.Errorf("%w: index %s has an invalid key %q:%q", domain.ErrInvalidSpec, spec.Name, k.Field, k.Kind)
		}
	}
	return nil
}

// DropIndex removes an index from a collection
func (ie *IndexEngine) DropIndex(collectionName, name string) error {
	if name == domain.IDIndexName {
		return fmt.Errorf("%w: cannot drop _id index", domain.ErrInvalidSpec)
	}
	if _, exists := ie.getIndex(collectionName, name); !exists {
		return fmt.Errorf("%w: index %s does not exist in collection %s", domain.ErrNotFound, name, collectionName)
	}

	delete(ie.indexes[collectionName], name)
	names := ie.order[collectionName]
	for i, n := range names {
		if n == name {
			ie.order[collectionName] = append(names[:i:i], names[i+1:]...)
			break
		}
	}
	return nil
}

// GetIndexes returns the indexes of a collection in creation order
func (ie *IndexEngine) GetIndexes(collectionName string) []*Index {
	names := ie.order[collectionName]
	out := make([]*Index, 0, len(names))
	for _, name := range names {
		out = append(out, ie.indexes[collectionName][name])
	}
	return out
}

// getIndex returns a named index of a collection
func (ie *IndexEngine) getIndex(collectionName, name string) (*Index, bool) {
	if collectionIndexes, exists := ie.indexes[collectionName]; exists {
		if index, exists := collectionIndexes[name]; exists {
			return index, true
		}
	}
	return nil, false
}

// GetIndex returns a named index of a collection.
func (ie *IndexEngine) GetIndex(collectionName, name string) (*Index, bool) {
	return ie.getIndex(collectionName, name)
}

// UpdateIndexForDocument updates every index of a collection when a document
// changes. Unique constraints are checked on all indexes before any is touched.
func (ie *IndexEngine) UpdateIndexForDocument(collectionName, docID string, oldDoc, newDoc domain.Document) error {
	indexes := ie.GetIndexes(collectionName)
	for _, index := range indexes {
		if err := index.CheckUnique(docID, newDoc); err != nil {
			return err
		}
	}
	for _, index := range indexes {
		if err := index.UpdateIndex(docID, oldDoc, newDoc); err != nil {
			return err
		}
	}
	return nil
}

// ExportIndexes returns the index specs of every collection, for persistence.
func (ie *IndexEngine) ExportIndexes() map[string][]domain.IndexSpec {
	out := make(map[string][]domain.IndexSpec, len(ie.order))
	for coll := range ie.order {
		for _, index := range ie.GetIndexes(coll) {
			out[coll] = append(out[coll], index.Spec.Clone())
		}
	}
	return out
}
