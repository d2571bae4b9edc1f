//go:build e2e

// Package e2e runs the engines against real DynamoDB tables.
// Run with: go test -tags=e2e -v ./e2e/...
//
// SYLLABUS_AWS_PROFILE, SYLLABUS_AWS_REGION and SYLLABUS_AWS_ENDPOINT
// select the account; point the endpoint at DynamoDB Local to run offline.
package e2e

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jacentio/syllabus/content"
	"github.com/jacentio/syllabus/details"
	"github.com/jacentio/syllabus/internal/app"
	"github.com/jacentio/syllabus/internal/config"
	"github.com/jacentio/syllabus/store"
	"github.com/jacentio/syllabus/tree"
)

var (
	ddbClient *dynamodb.Client
	testApp   *app.App
	tables    []string
)

// --- Test Setup & Teardown ---

func TestMain(m *testing.M) {
	ctx := context.Background()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Backend = config.BackendDynamoDB
	cfg.TablePrefix = fmt.Sprintf("syllabus-e2e-%s-", uuid.New().String()[:8])
	fmt.Printf("Table prefix: %s\n", cfg.TablePrefix)

	ddbClient, err = app.NewDynamoClient(ctx, cfg)
	if err != nil {
		fmt.Printf("Failed to create client: %v\n", err)
		os.Exit(1)
	}

	if err := createTables(ctx, cfg); err != nil {
		fmt.Printf("Failed to create tables: %v\n", err)
		deleteTables(ctx)
		os.Exit(1)
	}

	testApp, err = app.NewDynamo(ddbClient, cfg, zerolog.Nop())
	if err != nil {
		fmt.Printf("Failed to wire app: %v\n", err)
		deleteTables(ctx)
		os.Exit(1)
	}

	code := m.Run()
	deleteTables(ctx)
	os.Exit(code)
}

func createTable(ctx context.Context, in *dynamodb.CreateTableInput) error {
	in.BillingMode = types.BillingModePayPerRequest
	if _, err := ddbClient.CreateTable(ctx, in); err != nil {
		return fmt.Errorf("create table %s: %w", aws.ToString(in.TableName), err)
	}
	tables = append(tables, aws.ToString(in.TableName))
	return nil
}

func keySchema(hash, rng string) ([]types.KeySchemaElement, []types.AttributeDefinition) {
	schema := []types.KeySchemaElement{{AttributeName: aws.String(hash), KeyType: types.KeyTypeHash}}
	defs := []types.AttributeDefinition{{AttributeName: aws.String(hash), AttributeType: types.ScalarAttributeTypeS}}
	if rng != "" {
		schema = append(schema, types.KeySchemaElement{AttributeName: aws.String(rng), KeyType: types.KeyTypeRange})
		defs = append(defs, types.AttributeDefinition{AttributeName: aws.String(rng), AttributeType: types.ScalarAttributeTypeS})
	}
	return schema, defs
}

// createTables creates one table per kind, with a GSI on its parent
// attribute, plus the relationship, constraint and details tables.
func createTables(ctx context.Context, cfg *config.Config) error {
	sc := app.StoreConfig(cfg)

	for _, info := range content.Hierarchy().Kinds() {
		schema, defs := keySchema("id", "")
		in := &dynamodb.CreateTableInput{
			TableName:            aws.String(sc.Table(info.TableName)),
			KeySchema:            schema,
			AttributeDefinitions: defs,
		}
		if info.ParentKeyAttr != "" {
			in.AttributeDefinitions = append(in.AttributeDefinitions, types.AttributeDefinition{
				AttributeName: aws.String(info.ParentKeyAttr), AttributeType: types.ScalarAttributeTypeS,
			})
			in.GlobalSecondaryIndexes = []types.GlobalSecondaryIndex{{
				IndexName:  aws.String(sc.ParentIndex(info.ParentKeyAttr)),
				KeySchema:  []types.KeySchemaElement{{AttributeName: aws.String(info.ParentKeyAttr), KeyType: types.KeyTypeHash}},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			}}
		}
		if err := createTable(ctx, in); err != nil {
			return err
		}
	}

	system := []struct {
		name, hash, rng string
	}{
		{sc.Table(sc.RelationshipTable), "pk", "child_ref"},
		{sc.Table(sc.UniqueTable), "pk", "sk"},
		{sc.Table(details.DefaultTable), "ownerId", ""},
	}
	for _, tbl := range system {
		schema, defs := keySchema(tbl.hash, tbl.rng)
		if err := createTable(ctx, &dynamodb.CreateTableInput{
			TableName:            aws.String(tbl.name),
			KeySchema:            schema,
			AttributeDefinitions: defs,
		}); err != nil {
			return err
		}
	}

	waiter := dynamodb.NewTableExistsWaiter(ddbClient)
	for _, name := range tables {
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)}, 2*time.Minute); err != nil {
			return fmt.Errorf("wait for table %s: %w", name, err)
		}
	}
	return nil
}

func deleteTables(ctx context.Context) {
	for _, name := range tables {
		if _, err := ddbClient.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(name)}); err != nil {
			fmt.Printf("Warning: failed to delete table %s: %v\n", name, err)
		}
	}
}

// --- Helpers ---

func create(t *testing.T, doc content.Document) string {
	t.Helper()
	if err := content.Create(context.Background(), testApp.Creator, testApp.Registry, doc); err != nil {
		t.Fatalf("create %s: %v", doc.Kind(), err)
	}
	return doc.Base().ID
}

func node(name string, order int) content.Node {
	return content.Node{Name: name, OrderNumber: order}
}

type unitTree struct {
	exam, subject, unit string
	chapters, topics    []string
}

// newUnitTree builds a fresh exam > subject > unit > 2 chapters > 1 topic each.
func newUnitTree(t *testing.T, examOrder int) unitTree {
	var u unitTree
	u.exam = create(t, &content.Exam{Node: node("Exam "+uuid.New().String()[:4], examOrder)})
	u.subject = create(t, &content.Subject{Node: node("Physics", 1), ExamID: u.exam})
	u.unit = create(t, &content.Unit{Node: node("Mechanics", 1), SubjectID: u.subject, ExamID: u.exam})
	for i := 1; i <= 2; i++ {
		ch := create(t, &content.Chapter{Node: node(fmt.Sprintf("Chapter %d", i), i), UnitID: u.unit})
		u.chapters = append(u.chapters, ch)
		u.topics = append(u.topics, create(t, &content.Topic{Node: node("Topic", 1), ChapterID: ch}))
	}
	return u
}

func get(t *testing.T, kind store.Kind, id string) *store.Item {
	t.Helper()
	item, err := testApp.Browser.Get(context.Background(), kind, id)
	if err != nil {
		t.Fatalf("get %s %s: %v", kind, id, err)
	}
	return item
}

// --- Tests ---

func TestCreate_Bookkeeping(t *testing.T) {
	u := newUnitTree(t, 1)
	ch := get(t, content.KindChapter, u.chapters[0])

	if ch.Version != 1 {
		t.Errorf("expected version 1, got %d", ch.Version)
	}
	if ch.EntityRef != store.EntityRef(content.KindChapter, u.chapters[0]) {
		t.Errorf("unexpected entity_ref %q", ch.EntityRef)
	}
	if ch.ParentRef != store.EntityRef(content.KindUnit, u.unit) {
		t.Errorf("unexpected parent_ref %q", ch.ParentRef)
	}
	if ch.StringAttr(content.AttrStatus) != string(content.Active) {
		t.Errorf("expected default status active, got %q", ch.StringAttr(content.AttrStatus))
	}
}

func TestCreate_MissingParent(t *testing.T) {
	err := content.Create(context.Background(), testApp.Creator, testApp.Registry,
		&content.Chapter{Node: node("Orphan", 1), UnitID: uuid.New().String()})
	if !errors.Is(err, store.ErrParentNotFound) {
		t.Errorf("expected ErrParentNotFound, got %v", err)
	}
}

func TestCreate_DuplicateOrderNumber(t *testing.T) {
	u := newUnitTree(t, 2)
	err := content.Create(context.Background(), testApp.Creator, testApp.Registry,
		&content.Chapter{Node: node("Clash", 1), UnitID: u.unit})
	if !errors.Is(err, store.ErrDuplicateValue) {
		t.Errorf("expected ErrDuplicateValue, got %v", err)
	}
}

func TestSetStatus_Cascade(t *testing.T) {
	ctx := context.Background()
	u := newUnitTree(t, 3)

	res, err := testApp.Cascader.SetStatus(ctx, content.KindUnit, u.unit, content.Inactive)
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if res.Modified() != 4 {
		t.Errorf("expected 4 descendants modified, got %d", res.Modified())
	}
	for _, id := range u.topics {
		if s := get(t, content.KindTopic, id).StringAttr(content.AttrStatus); s != string(content.Inactive) {
			t.Errorf("topic %s: expected inactive, got %q", id, s)
		}
	}

	res, err = testApp.Cascader.SetStatus(ctx, content.KindUnit, u.unit, content.Inactive)
	if err != nil {
		t.Fatalf("SetStatus again: %v", err)
	}
	if res.Modified() != 0 {
		t.Errorf("expected idempotent cascade, got %d modified", res.Modified())
	}
}

func TestReorder_Swap(t *testing.T) {
	ctx := context.Background()
	u := newUnitTree(t, 4)

	res, err := testApp.Reorderer.Reorder(ctx, content.KindChapter, []tree.Position{
		{ID: u.chapters[0], OrderNumber: 2},
		{ID: u.chapters[1], OrderNumber: 1},
	})
	if err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if res.Modified != 2 {
		t.Errorf("expected 2 modified, got %d", res.Modified)
	}

	children, err := testApp.Browser.Children(ctx, content.KindChapter, u.unit)
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	if len(children) != 2 || children[0].ID != u.chapters[1] {
		t.Errorf("expected swapped order, got %v", children)
	}

	// the released numbers are free again
	err = content.Create(ctx, testApp.Creator, testApp.Registry, &content.Chapter{Node: node("Third", 3), UnitID: u.unit})
	if err != nil {
		t.Errorf("create with a free order number: %v", err)
	}
}

func TestReorder_ConflictScope(t *testing.T) {
	u := newUnitTree(t, 5)
	_, err := testApp.Reorderer.Reorder(context.Background(), content.KindTopic, []tree.Position{
		{ID: u.topics[0], OrderNumber: 2},
		{ID: u.topics[1], OrderNumber: 1},
	})
	if !errors.Is(err, tree.ErrConflictScope) {
		t.Errorf("expected ErrConflictScope, got %v", err)
	}
}

func TestDetails_RoundTrip(t *testing.T) {
	ctx := context.Background()
	u := newUnitTree(t, 6)

	in := details.Input{Content: "Vectors", SEOTitle: "Mechanics", Keywords: []string{"force"}}
	if _, err := testApp.Details.Upsert(ctx, content.KindUnit, u.unit, in); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	d, err := testApp.Details.Get(ctx, content.KindUnit, u.unit)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d.Content != "Vectors" || len(d.Keywords) != 1 {
		t.Errorf("unexpected details %+v", d)
	}
}

func TestDelete_SoftDeletes(t *testing.T) {
	ctx := context.Background()
	u := newUnitTree(t, 7)

	if err := testApp.Browser.Delete(ctx, content.KindChapter, u.chapters[0], false); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := testApp.Browser.Get(ctx, content.KindChapter, u.chapters[0]); !errors.Is(err, tree.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := testApp.Browser.Delete(ctx, content.KindChapter, u.chapters[0], false); !errors.Is(err, tree.ErrNotFound) {
		t.Errorf("expected second delete to report ErrNotFound, got %v", err)
	}

	// the stream handler cascades to children; without it the relationship is still listed
	children, err := testApp.Store.QueryAllChildren(ctx, store.EntityRef(content.KindChapter, u.chapters[0]))
	if err != nil {
		t.Fatalf("QueryAllChildren: %v", err)
	}
	if len(children) != 1 || children[0].Ref != store.EntityRef(content.KindTopic, u.topics[0]) {
		t.Errorf("unexpected children %+v", children)
	}
}
