package api

import (
	"bytes"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/jacentio/syllabus/content"
	"github.com/jacentio/syllabus/details"
	"github.com/jacentio/syllabus/store"
	"github.com/jacentio/syllabus/tree"
)

// internalAttrs are store bookkeeping never returned to clients.
var internalAttrs = []string{"entity_ref", "parent_ref", "version", "ttl", "_unique_pks"}

type contentApi struct {
	cascader  *tree.Cascader
	reorderer *tree.Reorderer
	browser   *tree.Browser
	details   *details.Service
}

func registerContentAPI(g *echo.Group, opts *Options) {
	a := contentApi{
		cascader:  opts.Cascader,
		reorderer: opts.Reorderer,
		browser:   opts.Browser,
		details:   opts.Details,
	}
	read := gateMiddleware(opts.Gate, CapRead)
	write := gateMiddleware(opts.Gate, CapWrite)

	kg := g.Group("/:kind")
	kg.GET("", a.list, read)
	kg.PUT("/reorder", a.reorder, write)

	dg := kg.Group("/:id")
	dg.GET("", a.retrieve, read)
	dg.DELETE("", a.destroy, write)
	dg.PATCH("/status", a.setStatus, write)
	dg.GET("/details", a.detailsRetrieve, read)
	dg.PUT("/details", a.detailsUpdate, write)
	dg.DELETE("/details", a.detailsDestroy, write)
}

// StatusRequest is the body of PATCH /v1/:kind/:id/status.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}

type statusResponse struct {
	Item        map[string]interface{}  `json:"item"`
	Generations []tree.GenerationResult `json:"generations"`
}

// Handlers

func (a *contentApi) list(ctx echo.Context) error {
	rk, err := lookupKind(ctx.Param("kind"))
	if err != nil {
		return err
	}
	items, err := a.browser.Children(ctx.Request().Context(), rk.kind, ctx.QueryParam("parent"))
	if err != nil {
		return errors.Wrap(err, "listing children")
	}
	data := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		doc, err := itemJSON(item)
		if err != nil {
			return err
		}
		data = append(data, doc)
	}
	return success(ctx, "ok", data)
}

func (a *contentApi) retrieve(ctx echo.Context) error {
	rk, err := lookupKind(ctx.Param("kind"))
	if err != nil {
		return err
	}
	item, err := a.browser.Get(ctx.Request().Context(), rk.kind, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding document")
	}
	doc, err := itemJSON(item)
	if err != nil {
		return err
	}
	return success(ctx, "ok", doc)
}

func (a *contentApi) destroy(ctx echo.Context) error {
	rk, err := lookupKind(ctx.Param("kind"))
	if err != nil {
		return err
	}
	protect := ctx.QueryParam("protect") == "true"
	if err := a.browser.Delete(ctx.Request().Context(), rk.kind, ctx.Param("id"), protect); err != nil {
		return errors.Wrap(err, "deleting document")
	}
	return success(ctx, "deleted", nil)
}

func (a *contentApi) setStatus(ctx echo.Context) error {
	rk, err := lookupKind(ctx.Param("kind"))
	if err != nil {
		return err
	}
	data := new(StatusRequest)
	if err := ctx.Bind(data); err != nil {
		return badRequest("malformed body")
	}
	if err := ctx.Validate(data); err != nil {
		return err
	}

	res, err := a.cascader.SetStatus(ctx.Request().Context(), rk.kind, ctx.Param("id"), content.Status(data.Status))
	if err != nil {
		return errors.Wrap(err, "cascading status")
	}
	doc, err := itemJSON(res.Root)
	if err != nil {
		return err
	}
	return successModified(ctx, "status updated", statusResponse{Item: doc, Generations: res.Generations}, res.Modified())
}

func (a *contentApi) reorder(ctx echo.Context) error {
	rk, err := lookupKind(ctx.Param("kind"))
	if err != nil {
		return err
	}
	positions, err := decodePositions(ctx, rk.batchKey)
	if err != nil {
		return err
	}
	res, err := a.reorderer.Reorder(ctx.Request().Context(), rk.kind, positions)
	if err != nil {
		return errors.Wrap(err, "reordering")
	}
	return successModified(ctx, "order updated", nil, res.Modified)
}

func (a *contentApi) detailsRetrieve(ctx echo.Context) error {
	rk, err := lookupKind(ctx.Param("kind"))
	if err != nil {
		return err
	}
	d, err := a.details.Get(ctx.Request().Context(), rk.kind, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting details")
	}
	return success(ctx, "ok", d)
}

func (a *contentApi) detailsUpdate(ctx echo.Context) error {
	rk, err := lookupKind(ctx.Param("kind"))
	if err != nil {
		return err
	}
	data := new(details.Input)
	if err := ctx.Bind(data); err != nil {
		return badRequest("malformed body")
	}
	if err := ctx.Validate(data); err != nil {
		return err
	}
	d, err := a.details.Upsert(ctx.Request().Context(), rk.kind, ctx.Param("id"), *data)
	if err != nil {
		return errors.Wrap(err, "saving details")
	}
	return success(ctx, "details saved", d)
}

func (a *contentApi) detailsDestroy(ctx echo.Context) error {
	rk, err := lookupKind(ctx.Param("kind"))
	if err != nil {
		return err
	}
	if err := a.details.Delete(ctx.Request().Context(), rk.kind, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting details")
	}
	return success(ctx, "details deleted", nil)
}

// decodePositions reads {<batchKey>|items: [{id, orderNumber}]}. Numbers
// are kept as json.Number so a non-integer orderNumber is rejected here,
// before the engine runs.
func decodePositions(ctx echo.Context, batchKey string) ([]tree.Position, error) {
	dec := json.NewDecoder(ctx.Request().Body)
	dec.UseNumber()
	var body map[string]json.RawMessage
	if err := dec.Decode(&body); err != nil {
		return nil, badRequest("malformed body")
	}
	raw, found := body[batchKey]
	if !found {
		raw, found = body[genericBatchKey]
	}
	if !found {
		return nil, badRequest("missing %q", batchKey)
	}

	var elems []map[string]interface{}
	itemsDec := json.NewDecoder(bytes.NewReader(raw))
	itemsDec.UseNumber()
	if err := itemsDec.Decode(&elems); err != nil {
		return nil, badRequest("%q must be an array of objects", batchKey)
	}

	positions := make([]tree.Position, len(elems))
	for i, elem := range elems {
		id, _ := elem["id"].(string)
		if id == "" {
			return nil, badRequest("element %d: missing id", i)
		}
		num, isNum := elem["orderNumber"].(json.Number)
		if !isNum {
			return nil, badRequest("element %d: orderNumber must be a number", i)
		}
		n, err := num.Int64()
		if err != nil {
			return nil, badRequest("element %d: orderNumber must be an integer", i)
		}
		positions[i] = tree.Position{ID: id, OrderNumber: int(n)}
	}
	return positions, nil
}

// itemJSON converts a stored document to its client representation.
func itemJSON(item *store.Item) (map[string]interface{}, error) {
	var doc map[string]interface{}
	if err := attributevalue.UnmarshalMap(item.Raw, &doc); err != nil {
		return nil, errors.Wrap(err, "unmarshalling document")
	}
	for _, attr := range internalAttrs {
		delete(doc, attr)
	}
	return doc, nil
}
