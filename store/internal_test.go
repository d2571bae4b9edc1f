package store

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// --- unmarshalItem Tests ---

func TestUnmarshalItem_Full(t *testing.T) {
	raw := map[string]types.AttributeValue{
		"id":         &types.AttributeValueMemberS{Value: "ch-1"},
		"version":    &types.AttributeValueMemberN{Value: "5"},
		"created_at": &types.AttributeValueMemberS{Value: "2024-01-01T00:00:00Z"},
		"updated_at": &types.AttributeValueMemberS{Value: "2024-01-02T00:00:00Z"},
		"entity_ref": &types.AttributeValueMemberS{Value: "chapter#ch-1"},
		"parent_ref": &types.AttributeValueMemberS{Value: "unit#u-1"},
	}

	item := unmarshalItem(raw)

	if item.ID != "ch-1" {
		t.Errorf("expected ID 'ch-1', got %q", item.ID)
	}
	if item.Version != 5 {
		t.Errorf("expected Version 5, got %d", item.Version)
	}
	if item.CreatedAt != "2024-01-01T00:00:00Z" {
		t.Errorf("expected CreatedAt '2024-01-01T00:00:00Z', got %q", item.CreatedAt)
	}
	if item.UpdatedAt != "2024-01-02T00:00:00Z" {
		t.Errorf("expected UpdatedAt '2024-01-02T00:00:00Z', got %q", item.UpdatedAt)
	}
	if item.EntityRef != "chapter#ch-1" {
		t.Errorf("expected EntityRef 'chapter#ch-1', got %q", item.EntityRef)
	}
	if item.ParentRef != "unit#u-1" {
		t.Errorf("expected ParentRef 'unit#u-1', got %q", item.ParentRef)
	}
}

func TestUnmarshalItem_Minimal(t *testing.T) {
	item := unmarshalItem(map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: "x"},
	})
	if item.ID != "x" || item.Version != 0 || item.ParentRef != "" {
		t.Errorf("unexpected item %+v", item)
	}
}

func TestUnmarshalItem_BadVersion(t *testing.T) {
	tests := []struct {
		name    string
		version types.AttributeValue
	}{
		{"string type", &types.AttributeValueMemberS{Value: "5"}},
		{"unparseable", &types.AttributeValueMemberN{Value: "five"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := unmarshalItem(map[string]types.AttributeValue{"version": tt.version})
			if item.Version != 0 {
				t.Errorf("expected Version 0, got %d", item.Version)
			}
		})
	}
}

func TestUnmarshalItem_PreservesRaw(t *testing.T) {
	raw := map[string]types.AttributeValue{
		"id":          &types.AttributeValueMemberS{Value: "t-1"},
		"orderNumber": &types.AttributeValueMemberN{Value: "3"},
	}
	item := unmarshalItem(raw)
	n, ok := item.IntAttr("orderNumber")
	if !ok || n != 3 {
		t.Errorf("expected orderNumber 3 from Raw, got %d (%v)", n, ok)
	}
}

// --- unmarshalChildRef Tests ---

func TestUnmarshalChildRef(t *testing.T) {
	raw := map[string]types.AttributeValue{
		"child_ref":   &types.AttributeValueMemberS{Value: "topic#t-1"},
		"child_table": &types.AttributeValueMemberS{Value: "dev_topics"},
		"child_key": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: "t-1"},
		}},
	}

	ref := unmarshalChildRef(raw, "chapter#c-1#00")

	if ref.Ref != "topic#t-1" {
		t.Errorf("expected Ref 'topic#t-1', got %q", ref.Ref)
	}
	if ref.TableName != "dev_topics" {
		t.Errorf("expected TableName 'dev_topics', got %q", ref.TableName)
	}
	if ref.ShardPK != "chapter#c-1#00" {
		t.Errorf("expected ShardPK 'chapter#c-1#00', got %q", ref.ShardPK)
	}
	if id := attrString(ref.Key["id"]); id != "t-1" {
		t.Errorf("expected key id 't-1', got %q", id)
	}
}

func TestUnmarshalChildRef_WrongKeyType(t *testing.T) {
	ref := unmarshalChildRef(map[string]types.AttributeValue{
		"child_key": &types.AttributeValueMemberS{Value: "not-a-map"},
	}, "unit#u-1#00")
	if ref.Key != nil {
		t.Error("expected nil Key for wrong type")
	}
}

// --- Transaction error mapping Tests ---

func cancelled(codes ...string) error {
	reasons := make([]types.CancellationReason, len(codes))
	for i, code := range codes {
		if code != "" {
			reasons[i] = types.CancellationReason{Code: aws.String(code)}
		}
	}
	return &types.TransactionCanceledException{CancellationReasons: reasons}
}

func TestMapCreateTransactionError(t *testing.T) {
	s := &Store{}
	other := errors.New("throttled")
	tests := []struct {
		name      string
		err       error
		parentIdx int
		entityIdx int
		want      error
	}{
		{"nil", nil, 0, 1, nil},
		{"not a transaction error", other, 0, 1, other},
		{"parent check", cancelled("ConditionalCheckFailed", "", ""), 0, 2, ErrParentNotFound},
		{"entity put", cancelled("", "", "ConditionalCheckFailed"), 0, 2, ErrAlreadyExists},
		{"unique constraint", cancelled("", "ConditionalCheckFailed", ""), 0, 2, ErrDuplicateValue},
		{"root without parent check", cancelled("ConditionalCheckFailed", ""), -1, 1, ErrDuplicateValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.mapCreateTransactionError(tt.err, tt.parentIdx, tt.entityIdx)
			if tt.want == nil {
				if got != nil {
					t.Errorf("expected nil, got %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestMapCreateTransactionError_OtherCode(t *testing.T) {
	s := &Store{}
	err := cancelled("ThrottlingError", "")
	if got := s.mapCreateTransactionError(err, 0, 1); got != err {
		t.Errorf("expected original error, got %v", got)
	}
}

func TestMapUpdateTransactionError(t *testing.T) {
	s := &Store{}
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"entity update", cancelled("", "", "ConditionalCheckFailed"), ErrConcurrentModification},
		{"constraint put", cancelled("", "ConditionalCheckFailed", ""), ErrDuplicateValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.mapUpdateTransactionError(tt.err, 2); !errors.Is(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
	if got := s.mapUpdateTransactionError(nil, 0); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestIgnoreConditionFailure(t *testing.T) {
	if err := ignoreConditionFailure(&types.ConditionalCheckFailedException{}); err != nil {
		t.Errorf("expected condition failure to be ignored, got %v", err)
	}
	other := errors.New("boom")
	if err := ignoreConditionFailure(other); err != other {
		t.Errorf("expected other errors to pass through, got %v", err)
	}
}

// --- Update expression helpers ---

func TestSetExpression(t *testing.T) {
	expr, names, values := setExpression(Fields{"status": String("inactive")}, "2024-01-01T00:00:00Z")

	if !strings.HasPrefix(expr, "SET #attr0 = :val0") {
		t.Errorf("unexpected expression %q", expr)
	}
	if !strings.Contains(expr, "#version = #version + :one") {
		t.Errorf("expected version bump in %q", expr)
	}
	if names["#attr0"] != "status" {
		t.Errorf("expected #attr0 -> status, got %q", names["#attr0"])
	}
	if attrString(values[":val0"]) != "inactive" {
		t.Errorf("expected :val0 inactive, got %v", values[":val0"])
	}
	if attrString(values[":updated_at"]) != "2024-01-01T00:00:00Z" {
		t.Errorf("unexpected :updated_at %v", values[":updated_at"])
	}
}

func TestMergedItem(t *testing.T) {
	raw := map[string]types.AttributeValue{
		"id":          String("t-1"),
		"orderNumber": Int(2),
		"version":     Int(4),
	}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	item := mergedItem(raw, Fields{"orderNumber": Int(7)}, now)

	if n, _ := item.IntAttr("orderNumber"); n != 7 {
		t.Errorf("expected orderNumber 7, got %d", n)
	}
	if item.UpdatedAt != "2024-03-01T12:00:00Z" {
		t.Errorf("unexpected UpdatedAt %q", item.UpdatedAt)
	}
	if item.Version != 4 {
		t.Errorf("expected Version untouched at 4, got %d", item.Version)
	}
	if n, _ := NewItem(raw).IntAttr("orderNumber"); n != 2 {
		t.Error("mergedItem must not mutate its input")
	}
}

func TestAttrString(t *testing.T) {
	if got := attrString(String("a")); got != "a" {
		t.Errorf("got %q", got)
	}
	if got := attrString(Int(12)); got != "12" {
		t.Errorf("got %q", got)
	}
	if got := attrString(&types.AttributeValueMemberBOOL{Value: true}); got != "" {
		t.Errorf("expected empty for BOOL, got %q", got)
	}
	if got := attrString(nil); got != "" {
		t.Errorf("expected empty for nil, got %q", got)
	}
}

// --- Config.validate Tests ---

func TestConfigValidate_Defaults(t *testing.T) {
	cfg := Config{}
	cfg.validate()

	if cfg.RelationshipTable != "syllabus_relationships" {
		t.Errorf("expected default RelationshipTable, got %q", cfg.RelationshipTable)
	}
	if cfg.UniqueTable != "syllabus_unique_constraints" {
		t.Errorf("expected default UniqueTable, got %q", cfg.UniqueTable)
	}
	if cfg.IndexSuffix != "-index" {
		t.Errorf("expected default IndexSuffix, got %q", cfg.IndexSuffix)
	}
	if cfg.NumShards != 1 {
		t.Errorf("expected NumShards 1, got %d", cfg.NumShards)
	}
}

func TestConfigValidate_NumShards(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 1},
		{-10, 1},
		{16, 16},
		{256, 256},
		{500, 256},
	}
	for _, tt := range tests {
		cfg := Config{NumShards: tt.in}
		cfg.validate()
		if cfg.NumShards != tt.want {
			t.Errorf("NumShards %d: expected %d, got %d", tt.in, tt.want, cfg.NumShards)
		}
	}
}

func TestConfigValidate_PreservesCustomTableNames(t *testing.T) {
	cfg := Config{
		RelationshipTable: "custom_rels",
		UniqueTable:       "custom_unique",
		IndexSuffix:       "-gsi",
	}
	cfg.validate()

	if cfg.RelationshipTable != "custom_rels" {
		t.Errorf("expected custom RelationshipTable, got %q", cfg.RelationshipTable)
	}
	if cfg.UniqueTable != "custom_unique" {
		t.Errorf("expected custom UniqueTable, got %q", cfg.UniqueTable)
	}
	if cfg.ParentIndex("unitId") != "unitId-gsi" {
		t.Errorf("unexpected index %q", cfg.ParentIndex("unitId"))
	}
}

// --- scope and sharding ---

func TestStore_RelationshipPK(t *testing.T) {
	s := &Store{config: Config{NumShards: 16}}
	pk := s.relationshipPK("unit#u-1", "chapter#c-1")
	if !strings.HasPrefix(pk, "unit#u-1#") {
		t.Errorf("expected pk to start with 'unit#u-1#', got %q", pk)
	}

	s = &Store{config: Config{NumShards: 1}}
	if pk := s.relationshipPK("unit#u-1", "chapter#c-1"); pk != "unit#u-1#00" {
		t.Errorf("expected 'unit#u-1#00', got %q", pk)
	}
}

func TestStore_ScopeOf(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterKind(KindInfo{Kind: "topic", TableName: "topics", Parent: "chapter", ParentKeyAttr: "chapterId", ScopeAttrs: []string{"chapterId"}})
	s := &Store{registry: reg}

	raw := map[string]types.AttributeValue{"chapterId": String("c-1")}
	if got := s.scopeOf("topic", raw, "chapter#c-1"); got != "topic|chapterId=c-1" {
		t.Errorf("unexpected registered scope %q", got)
	}
	if got := s.scopeOf("widget", raw, "chapter#c-1"); got != "chapter#c-1" {
		t.Errorf("expected parent ref fallback, got %q", got)
	}
}

func TestStore_UniqueAttrsIn(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterKind(KindInfo{Kind: "topic", TableName: "topics", UniqueAttrs: []string{"orderNumber"}})
	s := &Store{registry: reg}

	if attrs := s.uniqueAttrsIn("topic", Fields{"status": String("active")}); attrs != nil {
		t.Errorf("expected no unique attrs for a status update, got %v", attrs)
	}
	if attrs := s.uniqueAttrsIn("topic", Fields{"orderNumber": Int(1)}); len(attrs) != 1 {
		t.Errorf("expected orderNumber, got %v", attrs)
	}
	if attrs := (&Store{}).uniqueAttrsIn("topic", Fields{"orderNumber": Int(1)}); attrs != nil {
		t.Errorf("expected nil without registry, got %v", attrs)
	}
}
