package tree_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/syllabus/content"
	"github.com/jacentio/syllabus/store"
	"github.com/jacentio/syllabus/store/memstore"
	"github.com/jacentio/syllabus/tree"
)

type fixture struct {
	db        *memstore.DB
	catalog   *tree.Catalog
	cache     *tree.ListingCache
	cascader  *tree.Cascader
	reorderer *tree.Reorderer
	browser   *tree.Browser
	spies     map[store.Kind]*spyRepo

	// exams share one global order scope
	exams int
}

// newFixture builds the engines over an in-memory store whose repositories
// are wrapped in spies that count calls and can inject failures.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memstore.New(content.Hierarchy())
	f := &fixture{db: db, spies: make(map[store.Kind]*spyRepo)}

	catalog, err := tree.NewCatalog(db.Registry(), func(k store.Kind) (tree.Repository, error) {
		coll, err := db.Repository(k)
		if err != nil {
			return nil, err
		}
		spy := &spyRepo{Repository: coll}
		f.spies[k] = spy
		return spy, nil
	})
	require.NoError(t, err)

	cache, err := tree.NewListingCache(64)
	require.NoError(t, err)

	f.catalog = catalog
	f.cache = cache
	f.cascader = tree.NewCascader(catalog, cache, zerolog.Nop())
	f.reorderer = tree.NewReorderer(catalog, cache, zerolog.Nop())
	f.browser = tree.NewBrowser(catalog, cache, zerolog.Nop())
	return f
}

func (f *fixture) create(t *testing.T, doc content.Document) string {
	t.Helper()
	require.NoError(t, content.Create(context.Background(), f.db, f.db.Registry(), doc))
	return doc.Base().ID
}

func (f *fixture) get(t *testing.T, kind store.Kind, id string) *store.Item {
	t.Helper()
	coll, err := f.db.Repository(kind)
	require.NoError(t, err)
	item, err := coll.FindByID(context.Background(), id)
	require.NoError(t, err)
	return item
}

func (f *fixture) status(t *testing.T, kind store.Kind, id string) string {
	return f.get(t, kind, id).StringAttr(content.AttrStatus)
}

func (f *fixture) order(t *testing.T, kind store.Kind, id string) int64 {
	n, _ := f.get(t, kind, id).IntAttr(content.AttrOrderNumber)
	return n
}

// writes counts store write calls across every repository.
func (f *fixture) writes() int {
	n := 0
	for _, s := range f.spies {
		n += s.updateByID + s.updateWhereIn + s.bulkWrite
	}
	return n
}

func (f *fixture) calls() int {
	n := f.writes()
	for _, s := range f.spies {
		n += s.findMany
	}
	return n
}

func (f *fixture) createExam(t *testing.T, name string) string {
	t.Helper()
	f.exams++
	return f.create(t, &content.Exam{Node: node(name, f.exams, content.Active)})
}

func node(name string, order int, status content.Status) content.Node {
	return content.Node{Name: name, OrderNumber: order, Status: status}
}

// unitTree is a unit with two chapters, each holding topics, subtopics
// and definitions, in mixed statuses.
type unitTree struct {
	exam, subject, unit string
	chapters            []string
	topics              []string
	subtopics           []string
	definitions         []string
}

func seedUnit(t *testing.T, f *fixture) unitTree {
	t.Helper()
	var u unitTree
	u.exam = f.createExam(t, "Exam")
	u.subject = f.create(t, &content.Subject{Node: node("Physics", 1, content.Active), ExamID: u.exam})
	u.unit = f.create(t, &content.Unit{Node: node("Mechanics", 1, content.Active), SubjectID: u.subject, ExamID: u.exam})

	chapterStatus := []content.Status{content.Active, content.Inactive}
	for ci, cs := range chapterStatus {
		c := f.create(t, &content.Chapter{Node: node("Chapter", ci+1, cs), UnitID: u.unit, SubjectID: u.subject, ExamID: u.exam})
		u.chapters = append(u.chapters, c)
		for ti := 0; ti < 2; ti++ {
			ts := content.Active
			if ti == 1 {
				ts = content.Inactive
			}
			tp := f.create(t, &content.Topic{Node: node("Topic", ti+1, ts), ChapterID: c, UnitID: u.unit})
			u.topics = append(u.topics, tp)
			st := f.create(t, &content.SubTopic{Node: node("Subtopic", 1, content.Active), TopicID: tp, ChapterID: c})
			u.subtopics = append(u.subtopics, st)
			d := f.create(t, &content.Definition{Node: node("Definition", 1, content.Active), SubTopicID: st})
			u.definitions = append(u.definitions, d)
		}
	}
	return u
}

type spyRepo struct {
	tree.Repository

	findMany      int
	updateByID    int
	updateWhereIn int
	bulkWrite     int

	// failWhereIn fails UpdateWhereIn after its inner call.
	failWhereIn error
	// failBulkCall fails the n-th BulkWrite call (1-based) before applying it.
	failBulkCall int
}

var errInjected = errors.New("injected failure")

func (s *spyRepo) FindManyByIDs(ctx context.Context, ids []string) ([]*store.Item, error) {
	s.findMany++
	return s.Repository.FindManyByIDs(ctx, ids)
}

func (s *spyRepo) UpdateByID(ctx context.Context, id string, set store.Fields) (*store.Item, error) {
	s.updateByID++
	return s.Repository.UpdateByID(ctx, id, set)
}

func (s *spyRepo) UpdateWhereIn(ctx context.Context, attr string, parentIDs []string, set store.Fields) (store.UpdateResult, error) {
	s.updateWhereIn++
	res, err := s.Repository.UpdateWhereIn(ctx, attr, parentIDs, set)
	if err == nil && s.failWhereIn != nil {
		err = s.failWhereIn
	}
	return res, err
}

func (s *spyRepo) BulkWrite(ctx context.Context, ops []store.UpdateOp) (store.BulkResult, error) {
	s.bulkWrite++
	if s.failBulkCall == s.bulkWrite {
		return store.BulkResult{}, errInjected
	}
	return s.Repository.BulkWrite(ctx, ops)
}
