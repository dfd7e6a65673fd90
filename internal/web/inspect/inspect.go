// Package inspect serves a read-only JSON view of stored entities.
package inspect

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"reflect"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/conduit-lang/redisstore/internal/orm/async"
	"github.com/conduit-lang/redisstore/internal/orm/collection"
	"github.com/conduit-lang/redisstore/internal/orm/entity"
	"github.com/conduit-lang/redisstore/internal/orm/schema"
	"github.com/conduit-lang/redisstore/internal/web/middleware"
	"github.com/conduit-lang/redisstore/internal/web/response"
)

// DefaultLimit caps the members returned for one collection field
const DefaultLimit = 100

// FieldInfo describes a stored field
type FieldInfo struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Element string `json:"element"`
	Unique  bool   `json:"unique,omitempty"`
	Indexed bool   `json:"indexed,omitempty"`
}

// TypeInfo describes a registered entity type
type TypeInfo struct {
	Name         string      `json:"name"`
	Identity     string      `json:"identity"`
	AutoIdentity bool        `json:"auto_identity"`
	Counter      int64       `json:"counter"`
	Fields       []FieldInfo `json:"fields"`
}

// Record is the stored state of one entity. Collections appear as member counts.
type Record struct {
	Type   string         `json:"type"`
	ID     string         `json:"id"`
	Key    string         `json:"key"`
	Exists bool           `json:"exists"`
	Fields map[string]any `json:"fields"`
}

// Members is one page of a collection field
type Members struct {
	Field   string `json:"field"`
	Key     string `json:"key"`
	Count   int64  `json:"count"`
	Members []any  `json:"members"`
}

// Handler serves the inspection endpoints
type Handler struct {
	reg    *entity.Registry
	logger *zap.Logger
}

// NewHandler creates a handler over every type synthesized by reg
func NewHandler(reg *entity.Registry, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{reg: reg, logger: logger}
}

// Routes returns the router:
//
//	GET /counters
//	GET /types
//	GET /types/{type}
//	GET /types/{type}/{id}
//	GET /types/{type}/{id}/{field}?limit=N
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(),
		middleware.Logging(h.logger),
		middleware.Recovery(h.logger),
	)

	r.Get("/counters", h.counters)
	r.Route("/types", func(r chi.Router) {
		r.Get("/", h.listTypes)
		r.Get("/{type}", h.getType)
		r.Get("/{type}/{id}", h.getRecord)
		r.Get("/{type}/{id}/{field}", h.getMembers)
	})
	return r
}

func (h *Handler) counters(w http.ResponseWriter, r *http.Request) {
	all, err := h.reg.Counters().All(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.RenderJSON(w, http.StatusOK, all)
}

func (h *Handler) listTypes(w http.ResponseWriter, r *http.Request) {
	impls := h.reg.Implementations()
	out := make([]TypeInfo, 0, len(impls))
	for _, impl := range impls {
		info, err := h.describe(r.Context(), impl)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		out = append(out, info)
	}
	response.RenderJSON(w, http.StatusOK, out)
}

func (h *Handler) getType(w http.ResponseWriter, r *http.Request) {
	impl, ok := h.implementation(w, r)
	if !ok {
		return
	}
	info, err := h.describe(r.Context(), impl)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.RenderJSON(w, http.StatusOK, info)
}

func (h *Handler) getRecord(w http.ResponseWriter, r *http.Request) {
	impl, ok := h.implementation(w, r)
	if !ok {
		return
	}
	e, ok := h.parse(w, r, impl)
	if !ok {
		return
	}

	ctx := r.Context()
	desc := impl.Descriptor()
	key, err := impl.IdentityString(e)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rec := Record{
		Type:   desc.TypeName,
		ID:     key,
		Key:    desc.HashKey(key),
		Fields: make(map[string]any, len(desc.Fields)),
	}

	id, err := impl.Identity(e)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if rec.Exists, err = impl.Exists(ctx, id); err != nil {
		h.fail(w, r, err)
		return
	}

	for i := range desc.Fields {
		fd := &desc.Fields[i]
		v, err := impl.GetField(ctx, e, fd.Name)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if rec.Fields[fd.Name], err = h.plain(ctx, fd, v); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	response.RenderJSON(w, http.StatusOK, rec)
}

func (h *Handler) getMembers(w http.ResponseWriter, r *http.Request) {
	impl, ok := h.implementation(w, r)
	if !ok {
		return
	}
	e, ok := h.parse(w, r, impl)
	if !ok {
		return
	}

	name := chi.URLParam(r, "field")
	fd, ok := impl.Descriptor().Field(name)
	if !ok {
		response.RenderNotFound(w, fmt.Sprintf("%s has no field %s", impl.Descriptor().TypeName, name))
		return
	}
	if !fd.Kind.IsCollection() {
		response.RenderBadRequest(w, fmt.Sprintf("%s is a %s field, not a collection", name, fd.Kind))
		return
	}

	limit := DefaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			response.RenderBadRequest(w, fmt.Sprintf("invalid limit %q", s))
			return
		}
		limit = n
	}

	ctx := r.Context()
	v, err := impl.GetField(ctx, e, name)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	page := Members{Field: name, Members: []any{}}
	var (
		count   func(context.Context) (int64, error)
		members iter.Seq2[any, error]
	)
	switch c := v.(type) {
	case *collection.List:
		page.Key, count, members = c.Key(), c.Count, c.All(ctx)
	case *collection.Set:
		page.Key, count, members = c.Key(), c.Count, c.All(ctx)
	default:
		h.fail(w, r, fmt.Errorf("unexpected collection view %T", v))
		return
	}

	if page.Count, err = count(ctx); err != nil {
		h.fail(w, r, err)
		return
	}
	for m, err := range members {
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if len(page.Members) >= limit {
			break
		}
		pm, err := h.element(fd, m)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		page.Members = append(page.Members, pm)
	}
	response.RenderJSON(w, http.StatusOK, page)
}

func (h *Handler) implementation(w http.ResponseWriter, r *http.Request) (*entity.Implementation, bool) {
	name := chi.URLParam(r, "type")
	impl, ok := h.reg.ByName(name)
	if !ok {
		response.RenderNotFound(w, fmt.Sprintf("unknown entity type %s", name))
	}
	return impl, ok
}

func (h *Handler) parse(w http.ResponseWriter, r *http.Request, impl *entity.Implementation) (any, bool) {
	e, err := impl.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.RenderBadRequest(w, err.Error())
		return nil, false
	}
	return e, true
}

func (h *Handler) describe(ctx context.Context, impl *entity.Implementation) (TypeInfo, error) {
	desc := impl.Descriptor()
	info := TypeInfo{
		Name:         desc.TypeName,
		Identity:     desc.Identity.Name,
		AutoIdentity: desc.AutoIdentity,
		Fields:       make([]FieldInfo, len(desc.Fields)),
	}
	for i, fd := range desc.Fields {
		info.Fields[i] = FieldInfo{
			Name:    fd.Name,
			Kind:    fd.Kind.String(),
			Element: fd.ElementType.String(),
			Unique:  fd.Unique,
			Indexed: fd.Indexed,
		}
	}

	if desc.AutoIdentity {
		n, err := h.reg.Counters().Bound(ctx, desc.TypeName)
		if err != nil {
			return TypeInfo{}, err
		}
		info.Counter = n
	}
	return info, nil
}

// plain converts a field value read through GetField into JSON-ready form
func (h *Handler) plain(ctx context.Context, fd *schema.FieldDescriptor, v any) (any, error) {
	switch c := v.(type) {
	case *collection.List:
		n, err := c.Count(ctx)
		return map[string]int64{"count": n}, err
	case *collection.Set:
		n, err := c.Count(ctx)
		return map[string]int64{"count": n}, err
	case async.Handle[any]:
		x, err := c.Wait(ctx)
		if err != nil {
			return nil, err
		}
		return h.element(fd, x)
	}
	return h.element(fd, v)
}

// element renders entity handles as their identity and nil pointers as null
func (h *Handler) element(fd *schema.FieldDescriptor, v any) (any, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() == reflect.Pointer && rv.IsNil()) {
		return nil, nil
	}
	if fd.Entity {
		return h.reg.IdentityOf(v)
	}
	if rv.Kind() == reflect.Pointer {
		return rv.Elem().Interface(), nil
	}
	return v, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, entity.ErrUnknownField) {
		status = http.StatusNotFound
	}
	h.logger.Error("inspect request failed",
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	response.RenderError(w, status, err)
}
