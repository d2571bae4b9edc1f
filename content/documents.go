package content

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/syllabus/store"
)

// Node holds the fields every document has.
type Node struct {
	ID          string `dynamodbav:"id" json:"id"`
	Name        string `dynamodbav:"name" json:"name"`
	OrderNumber int    `dynamodbav:"orderNumber,omitempty" json:"orderNumber,omitempty"`
	Status      Status `dynamodbav:"status" json:"status"`
}

// Base returns the shared fields.
func (n *Node) Base() *Node { return n }

// Document is a typed content or practice document.
type Document interface {
	Kind() store.Kind
	Base() *Node

	// ParentID is the id of the immediate parent; "" for roots.
	ParentID() string
}

type Exam struct {
	Node
	Description string `dynamodbav:"description,omitempty" json:"description,omitempty"`
}

func (*Exam) Kind() store.Kind { return KindExam }
func (*Exam) ParentID() string { return "" }

type Subject struct {
	Node
	ExamID string `dynamodbav:"examId" json:"examId"`
}

func (*Subject) Kind() store.Kind   { return KindSubject }
func (s *Subject) ParentID() string { return s.ExamID }

type Unit struct {
	Node
	SubjectID string `dynamodbav:"subjectId" json:"subjectId"`
	ExamID    string `dynamodbav:"examId" json:"examId"`
}

func (*Unit) Kind() store.Kind   { return KindUnit }
func (u *Unit) ParentID() string { return u.SubjectID }

type Chapter struct {
	Node
	UnitID    string `dynamodbav:"unitId" json:"unitId"`
	SubjectID string `dynamodbav:"subjectId,omitempty" json:"subjectId,omitempty"`
	ExamID    string `dynamodbav:"examId,omitempty" json:"examId,omitempty"`
}

func (*Chapter) Kind() store.Kind   { return KindChapter }
func (c *Chapter) ParentID() string { return c.UnitID }

type Topic struct {
	Node
	ChapterID string `dynamodbav:"chapterId" json:"chapterId"`
	UnitID    string `dynamodbav:"unitId,omitempty" json:"unitId,omitempty"`
	SubjectID string `dynamodbav:"subjectId,omitempty" json:"subjectId,omitempty"`
	ExamID    string `dynamodbav:"examId,omitempty" json:"examId,omitempty"`
}

func (*Topic) Kind() store.Kind   { return KindTopic }
func (t *Topic) ParentID() string { return t.ChapterID }

type SubTopic struct {
	Node
	TopicID   string `dynamodbav:"topicId" json:"topicId"`
	ChapterID string `dynamodbav:"chapterId,omitempty" json:"chapterId,omitempty"`
	UnitID    string `dynamodbav:"unitId,omitempty" json:"unitId,omitempty"`
	SubjectID string `dynamodbav:"subjectId,omitempty" json:"subjectId,omitempty"`
	ExamID    string `dynamodbav:"examId,omitempty" json:"examId,omitempty"`
}

func (*SubTopic) Kind() store.Kind   { return KindSubTopic }
func (s *SubTopic) ParentID() string { return s.TopicID }

type Definition struct {
	Node
	SubTopicID  string `dynamodbav:"subTopicId" json:"subTopicId"`
	TopicID     string `dynamodbav:"topicId,omitempty" json:"topicId,omitempty"`
	ChapterID   string `dynamodbav:"chapterId,omitempty" json:"chapterId,omitempty"`
	UnitID      string `dynamodbav:"unitId,omitempty" json:"unitId,omitempty"`
	SubjectID   string `dynamodbav:"subjectId,omitempty" json:"subjectId,omitempty"`
	ExamID      string `dynamodbav:"examId,omitempty" json:"examId,omitempty"`
	Explanation string `dynamodbav:"explanation,omitempty" json:"explanation,omitempty"`
}

func (*Definition) Kind() store.Kind   { return KindDefinition }
func (d *Definition) ParentID() string { return d.SubTopicID }

type PracticeCategory struct {
	Node
}

func (*PracticeCategory) Kind() store.Kind { return KindPracticeCategory }
func (*PracticeCategory) ParentID() string { return "" }

// PracticeSubCategory may point at a node of the content tree for context.
// That reference is informational: the content tree does not own it.
type PracticeSubCategory struct {
	Node
	CategoryID string `dynamodbav:"categoryId" json:"categoryId"`
	UnitID     string `dynamodbav:"unitId,omitempty" json:"unitId,omitempty"`
	ChapterID  string `dynamodbav:"chapterId,omitempty" json:"chapterId,omitempty"`
	TopicID    string `dynamodbav:"topicId,omitempty" json:"topicId,omitempty"`
	SubTopicID string `dynamodbav:"subTopicId,omitempty" json:"subTopicId,omitempty"`
}

func (*PracticeSubCategory) Kind() store.Kind   { return KindPracticeSubCategory }
func (s *PracticeSubCategory) ParentID() string { return s.CategoryID }

type PracticeQuestion struct {
	Node
	SubCategoryID string   `dynamodbav:"subCategoryId" json:"subCategoryId"`
	CategoryID    string   `dynamodbav:"categoryId,omitempty" json:"categoryId,omitempty"`
	Question      string   `dynamodbav:"question" json:"question"`
	Options       []string `dynamodbav:"options,omitempty" json:"options,omitempty"`
	Answer        int      `dynamodbav:"answer" json:"answer"`
	Explanation   string   `dynamodbav:"explanation,omitempty" json:"explanation,omitempty"`
}

func (*PracticeQuestion) Kind() store.Kind   { return KindPracticeQuestion }
func (q *PracticeQuestion) ParentID() string { return q.SubCategoryID }

// entity adapts a Document to the store's entity interfaces.
type entity struct {
	info   store.KindInfo
	parent store.KindInfo
	doc    Document
}

// Entity wraps doc for the store, resolving its table and parent from reg.
func Entity(reg *store.Registry, doc Document) (store.Entity, error) {
	info, ok := reg.Kind(doc.Kind())
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownKind, doc.Kind())
	}
	e := entity{info: info, doc: doc}
	if info.Parent != "" {
		e.parent, _ = reg.Kind(info.Parent)
	}
	return e, nil
}

func (e entity) TableName() string      { return e.info.TableName }
func (e entity) GetKey() store.PK       { return store.IDKey(e.doc.Base().ID) }
func (e entity) EntityRef() string      { return store.EntityRef(e.info.Kind, e.doc.Base().ID) }
func (e entity) EntityType() store.Kind { return e.info.Kind }

func (e entity) ParentCheck() *store.ConditionCheck {
	if e.info.Parent == "" {
		return nil
	}
	return &store.ConditionCheck{
		TableName: e.parent.TableName,
		Key:       store.IDKey(e.doc.ParentID()),
	}
}

func (e entity) ParentRef() string {
	if e.info.Parent == "" {
		return ""
	}
	return store.EntityRef(e.info.Parent, e.doc.ParentID())
}

func (e entity) UniqueFields() map[string]string {
	n := e.doc.Base().OrderNumber
	if !e.info.Ordered || n <= 0 {
		return nil
	}
	return map[string]string{AttrOrderNumber: strconv.Itoa(n)}
}

// Creator persists new documents. Both the DynamoDB store and the
// in-memory store implement it.
type Creator interface {
	Create(ctx context.Context, entity store.Entity, item map[string]types.AttributeValue) error
}

// Create assigns an id and a default status when missing, then persists doc.
func Create(ctx context.Context, c Creator, reg *store.Registry, doc Document) error {
	base := doc.Base()
	if base.ID == "" {
		base.ID = uuid.New().String()
	}
	if base.Status == "" {
		base.Status = Active
	}
	if n := base.OrderNumber; n < 0 || n > MaxOrderNumber {
		return fmt.Errorf("%s %s: orderNumber %d outside 0..%d", doc.Kind(), base.ID, n, MaxOrderNumber)
	}
	if doc.ParentID() == "" {
		if info, ok := reg.Kind(doc.Kind()); ok && info.Parent != "" {
			return fmt.Errorf("%s %s: missing %s", doc.Kind(), base.ID, info.ParentKeyAttr)
		}
	}

	e, err := Entity(reg, doc)
	if err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", doc.Kind(), err)
	}
	return c.Create(ctx, e, item)
}
