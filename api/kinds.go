package api

import (
	"github.com/jacentio/syllabus/content"
	"github.com/jacentio/syllabus/store"
)

// routeKind describes how a kind appears in URLs and request bodies.
type routeKind struct {
	kind store.Kind
	// batchKey is the reorder body key holding the positions.
	batchKey string
}

var routeKinds = map[string]routeKind{
	"exams":                  {content.KindExam, "exams"},
	"subjects":               {content.KindSubject, "subjects"},
	"units":                  {content.KindUnit, "units"},
	"chapters":               {content.KindChapter, "chapters"},
	"topics":                 {content.KindTopic, "topics"},
	"subtopics":              {content.KindSubTopic, "subTopics"},
	"definitions":            {content.KindDefinition, "definitions"},
	"practice-categories":    {content.KindPracticeCategory, "practiceCategories"},
	"practice-subcategories": {content.KindPracticeSubCategory, "practiceSubCategories"},
	"practice-questions":     {content.KindPracticeQuestion, "practiceQuestions"},
}

// genericBatchKey is accepted for every kind.
const genericBatchKey = "items"

func lookupKind(name string) (routeKind, error) {
	rk, ok := routeKinds[name]
	if !ok {
		return routeKind{}, errHttpNotFound
	}
	return rk, nil
}
