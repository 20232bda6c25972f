package journal

import (
	"testing"

	"github.com/kasuganosora/rowwatch/pkg/cache"
	"github.com/kasuganosora/rowwatch/pkg/index"
	"github.com/kasuganosora/rowwatch/pkg/schema"
)

func movieTable() *schema.Table {
	return &schema.Table{
		Name:       "users",
		Columns:    []schema.Column{{Name: "id", Kind: schema.KindInteger}, {Name: "email", Kind: schema.KindText}},
		PrimaryKey: []string{"id"},
		UniqueColumns: []string{"email"},
	}
}

// S2: inserting two rows with the same unique column in the same
// transaction fails the second.
func TestValidateRejectsDuplicateUniqueWithinTransaction(t *testing.T) {
	table := movieTable()
	j := New()
	row1 := schema.Row{ID: 1, Payload: map[string]schema.Value{"id": schema.Integer(1), "email": schema.Text("x@y")}}
	row2 := schema.Row{ID: 2, Payload: map[string]schema.Value{"id": schema.Integer(2), "email": schema.Text("x@y")}}
	if err := j.StageInsert("users", row1); err != nil {
		t.Fatal(err)
	}
	if err := j.StageInsert("users", row2); err != nil {
		t.Fatal(err)
	}
	c := cache.New()
	if err := Validate(j, table, IndexSet{}, c); err == nil {
		t.Fatal("expected a constraint violation for duplicate unique values in one transaction")
	}
}

// S2: the first row is present if the two inserts are in separate
// transactions — i.e. once the first is committed, its value shows up in
// the email index and blocks a later transaction's duplicate.
func TestValidateRejectsDuplicateAgainstCommittedIndex(t *testing.T) {
	table := movieTable()
	emailIdx := index.NewSorted(true)
	emailIdx.Add(schema.Text("x@y"), 1)

	j := New()
	row2 := schema.Row{ID: 2, Payload: map[string]schema.Value{"id": schema.Integer(2), "email": schema.Text("x@y")}}
	if err := j.StageInsert("users", row2); err != nil {
		t.Fatal(err)
	}

	c := cache.New()
	idxSet := IndexSet{"email": emailIdx}
	if err := Validate(j, table, idxSet, c); err == nil {
		t.Fatal("expected a constraint violation against the already-committed row")
	}
}

func TestValidateNotNull(t *testing.T) {
	table := &schema.Table{
		Name:    "t",
		Columns: []schema.Column{{Name: "a", Kind: schema.KindInteger, Nullable: false}},
	}
	j := New()
	row := schema.Row{ID: 1, Payload: map[string]schema.Value{}}
	j.StageInsert("t", row)
	if err := Validate(j, table, IndexSet{}, cache.New()); err == nil {
		t.Fatal("expected not-null violation")
	}
}

func TestInsertThenDeleteInSameTxnCancelsOut(t *testing.T) {
	j := New()
	row := schema.Row{ID: 1, Payload: map[string]schema.Value{"id": schema.Integer(1)}}
	j.StageInsert("t", row)
	j.StageDelete("t", row)
	if !j.Empty() {
		t.Fatal("insert immediately followed by delete in the same transaction should leave no staged change")
	}
}

func TestLookupObservesOwnWrites(t *testing.T) {
	j := New()
	row := schema.Row{ID: 1, Payload: map[string]schema.Value{"a": schema.Integer(1)}}
	j.StageInsert("t", row)
	c, ok := j.Lookup("t", 1)
	if !ok || c.After.Payload["a"].Int != 1 {
		t.Fatal("expected to observe the transaction's own staged insert")
	}
}
