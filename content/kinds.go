// Package content defines the documents of the content tree
// (exam, subject, unit, chapter, topic, subtopic, definition) and of the
// practice tree (category, subcategory, question), and the hierarchy that
// links them.
package content

import "github.com/jacentio/syllabus/store"

// Content tree kinds.
const (
	KindExam       store.Kind = "exam"
	KindSubject    store.Kind = "subject"
	KindUnit       store.Kind = "unit"
	KindChapter    store.Kind = "chapter"
	KindTopic      store.Kind = "topic"
	KindSubTopic   store.Kind = "subtopic"
	KindDefinition store.Kind = "definition"
)

// Practice tree kinds.
const (
	KindPracticeCategory    store.Kind = "practiceCategory"
	KindPracticeSubCategory store.Kind = "practiceSubCategory"
	KindPracticeQuestion    store.Kind = "practiceQuestion"
)

// Document attributes shared by every kind.
const (
	AttrID          = "id"
	AttrName        = "name"
	AttrStatus      = "status"
	AttrOrderNumber = "orderNumber"
)

// MaxOrderNumber is the largest order number a document may hold. Larger
// numbers are reserved for the temporary positions of a reorder.
const MaxOrderNumber = 9999

// Parent and ancestor reference attributes.
const (
	AttrExamID        = "examId"
	AttrSubjectID     = "subjectId"
	AttrUnitID        = "unitId"
	AttrChapterID     = "chapterId"
	AttrTopicID       = "topicId"
	AttrSubTopicID    = "subTopicId"
	AttrCategoryID    = "categoryId"
	AttrSubCategoryID = "subCategoryId"
)

// Status is the visibility state of a document.
type Status string

const (
	Active   Status = "active"
	Inactive Status = "inactive"
)

// Valid reports whether s is one of the two known statuses.
func (s Status) Valid() bool {
	return s == Active || s == Inactive
}

// Hierarchy returns the descriptor of both trees.
func Hierarchy() *store.Registry {
	reg := store.NewRegistry()
	ordered := func(info store.KindInfo) store.KindInfo {
		info.Ordered = true
		info.UniqueAttrs = []string{AttrOrderNumber}
		return info
	}

	reg.RegisterKind(ordered(store.KindInfo{
		Kind:       KindExam,
		TableName:  "exams",
		HasDetails: true,
	}))
	reg.RegisterKind(ordered(store.KindInfo{
		Kind:          KindSubject,
		TableName:     "subjects",
		Parent:        KindExam,
		ParentKeyAttr: AttrExamID,
		ScopeAttrs:    []string{AttrExamID},
		HasDetails:    true,
	}))
	// units are ordered per subject within an exam
	reg.RegisterKind(ordered(store.KindInfo{
		Kind:          KindUnit,
		TableName:     "units",
		Parent:        KindSubject,
		ParentKeyAttr: AttrSubjectID,
		ScopeAttrs:    []string{AttrSubjectID, AttrExamID},
		HasDetails:    true,
	}))
	reg.RegisterKind(ordered(store.KindInfo{
		Kind:          KindChapter,
		TableName:     "chapters",
		Parent:        KindUnit,
		ParentKeyAttr: AttrUnitID,
		ScopeAttrs:    []string{AttrUnitID},
		HasDetails:    true,
	}))
	reg.RegisterKind(ordered(store.KindInfo{
		Kind:          KindTopic,
		TableName:     "topics",
		Parent:        KindChapter,
		ParentKeyAttr: AttrChapterID,
		ScopeAttrs:    []string{AttrChapterID},
		HasDetails:    true,
	}))
	reg.RegisterKind(ordered(store.KindInfo{
		Kind:          KindSubTopic,
		TableName:     "subtopics",
		Parent:        KindTopic,
		ParentKeyAttr: AttrTopicID,
		ScopeAttrs:    []string{AttrTopicID},
		HasDetails:    true,
	}))
	reg.RegisterKind(ordered(store.KindInfo{
		Kind:          KindDefinition,
		TableName:     "definitions",
		Parent:        KindSubTopic,
		ParentKeyAttr: AttrSubTopicID,
		ScopeAttrs:    []string{AttrSubTopicID},
	}))

	reg.RegisterKind(ordered(store.KindInfo{
		Kind:       KindPracticeCategory,
		TableName:  "practice_categories",
		HasDetails: true,
	}))
	reg.RegisterKind(ordered(store.KindInfo{
		Kind:          KindPracticeSubCategory,
		TableName:     "practice_subcategories",
		Parent:        KindPracticeCategory,
		ParentKeyAttr: AttrCategoryID,
		ScopeAttrs:    []string{AttrCategoryID},
		HasDetails:    true,
	}))
	reg.RegisterKind(ordered(store.KindInfo{
		Kind:          KindPracticeQuestion,
		TableName:     "practice_questions",
		Parent:        KindPracticeSubCategory,
		ParentKeyAttr: AttrSubCategoryID,
		ScopeAttrs:    []string{AttrSubCategoryID},
	}))

	return reg
}
