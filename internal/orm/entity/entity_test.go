package entity

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"

	"github.com/conduit-lang/redisstore/internal/orm/async"
	"github.com/conduit-lang/redisstore/internal/orm/collection"
	"github.com/conduit-lang/redisstore/internal/orm/index"
	"github.com/conduit-lang/redisstore/internal/orm/query"
	"github.com/conduit-lang/redisstore/internal/orm/schema"
)

// Minimal accessors; the typed ones live in pkg/store.
type slot struct{ b *Binding }

func (s *slot) BindField(b *Binding) { s.b = b }

type value[T any] struct{ slot }
type list[T any] struct{ slot }
type set[T any] struct{ slot }
type asyncValue[T any] struct{ slot }
type shapedOnly[T any] struct{}

func elemOf[T any]() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

func (value[T]) FieldShape() schema.Shape {
	return schema.Shape{Container: schema.ContainerValue, Elem: elemOf[T]()}
}
func (list[T]) FieldShape() schema.Shape {
	return schema.Shape{Container: schema.ContainerList, Elem: elemOf[T]()}
}
func (set[T]) FieldShape() schema.Shape {
	return schema.Shape{Container: schema.ContainerSet, Elem: elemOf[T]()}
}
func (asyncValue[T]) FieldShape() schema.Shape {
	return schema.Shape{Container: schema.ContainerAsync, Elem: elemOf[T]()}
}
func (shapedOnly[T]) FieldShape() schema.Shape {
	return schema.Shape{Container: schema.ContainerValue, Elem: elemOf[T]()}
}

type Question struct {
	ID    int64
	Title value[string]
	Votes value[int]
	Asker value[*Member]
}

type Member struct {
	Handle    string          `store:",id"`
	Email     value[*string]  `store:",unique,index"`
	City      value[string]   `store:",index"`
	Nickname  value[string]
	Score     asyncValue[int64]
	Questions list[*Question]
	Friends   set[*Member]
	Tags      set[string]
}

type Token struct {
	Id    uuid.UUID
	Label value[string]
}

type Plain struct {
	ID   int
	Name string
}

type NotBindable struct {
	ID   int
	Name shapedOnly[string]
}

// commandCounter counts commands issued through a client and can fail pipelines
type commandCounter struct {
	n             atomic.Int64
	failPipelines atomic.Bool
}

func (c *commandCounter) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (c *commandCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		c.n.Add(1)
		return next(ctx, cmd)
	}
}

func (c *commandCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		c.n.Add(int64(len(cmds)))
		if c.failPipelines.Load() {
			return errConnectionReset
		}
		return next(ctx, cmds)
	}
}

var errConnectionReset = errors.New("connection reset")

type fixture struct {
	reg     *Registry
	mr      *miniredis.Miniredis
	counter *commandCounter
	logs    *observer.ObservedLogs
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func setupRegistry(t *testing.T, opts Options) *fixture {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	require.NoError(t, client.Ping(context.Background()).Err())

	counter := &commandCounter{}
	client.AddHook(counter)

	core, logs := observer.New(zap.DebugLevel)
	opts.Now = func() time.Time { return fixedNow }

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return &fixture{
		reg:     NewRegistry(client, zap.New(core), opts),
		mr:      mr,
		counter: counter,
		logs:    logs,
	}
}

func (f *fixture) impl(t *testing.T, v any) *Implementation {
	impl, err := f.reg.Implementation(reflect.TypeOf(v))
	require.NoError(t, err)
	return impl
}

func TestRegistry_SynthesizesOncePerType(t *testing.T) {
	f := setupRegistry(t, DefaultOptions())

	const callers = 32
	impls := make([]*Implementation, callers)

	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			impl, err := f.reg.Implementation(reflect.TypeOf(&Question{}))
			impls[i] = impl
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, impl := range impls {
		assert.Same(t, impls[0], impl)
	}
	assert.Equal(t, 1, f.logs.FilterMessage("synthesized entity implementation").Len())

	again, err := f.reg.Implementation(reflect.TypeOf(Question{}))
	require.NoError(t, err)
	assert.Same(t, impls[0], again)
}

func TestRegistry_RejectedContractsStayRejected(t *testing.T) {
	f := setupRegistry(t, DefaultOptions())

	_, err := f.reg.Implementation(reflect.TypeOf(Plain{}))
	assert.ErrorIs(t, err, schema.ErrUnrepresentableFieldType)

	_, again := f.reg.Implementation(reflect.TypeOf(Plain{}))
	assert.Equal(t, err, again)
	assert.Equal(t, 1, f.logs.FilterMessage("entity contract rejected").Len())

	_, err = f.reg.Implementation(reflect.TypeOf(NotBindable{}))
	assert.ErrorIs(t, err, schema.ErrUnrepresentableFieldType)

	_, err = f.reg.Implementation(reflect.TypeOf(42))
	assert.ErrorIs(t, err, schema.ErrNotAnEntityContract)
}

func TestRegistry_RejectsDuplicateTypeNames(t *testing.T) {
	f := setupRegistry(t, DefaultOptions())
	f.impl(t, Question{})

	type Question struct {
		ID   int
		Body value[string]
	}
	_, err := f.reg.Implementation(reflect.TypeOf(Question{}))
	assert.ErrorIs(t, err, ErrDuplicateTypeName)

	impl, ok := f.reg.ByName("Question")
	require.True(t, ok)
	assert.Equal(t, "Title", impl.Descriptor().Fields[0].Name)
}

func TestRegistry_Implementations(t *testing.T) {
	f := setupRegistry(t, DefaultOptions())
	f.impl(t, Token{})
	f.impl(t, Member{})
	f.impl(t, Question{})

	var names []string
	for _, impl := range f.reg.Implementations() {
		names = append(names, impl.Descriptor().TypeName)
	}
	assert.Equal(t, []string{"Member", "Question", "Token"}, names)

	_, ok := f.reg.ByName("Nobody")
	assert.False(t, ok)
}

func TestImplementation_CreateAndEnumerate(t *testing.T) {
	f := setupRegistry(t, DefaultOptions())
	impl := f.impl(t, Question{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := impl.Create(ctx, nil)
		require.NoError(t, err)
	}

	var ids []int64
	for q, err := range impl.Enumerate(ctx) {
		require.NoError(t, err)
		ids = append(ids, q.(*Question).ID)
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)

	assert.Equal(t, "1709294400", f.mr.HGet("/Question/2", schema.CreatedField))

	// a new iteration sees identities issued since
	_, err := impl.Create(ctx, nil)
	require.NoError(t, err)
	count := 0
	for _, err := range impl.Enumerate(ctx) {
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 4, count)
}

func TestImplementation_CreateWithoutMarker(t *testing.T) {
	f := setupRegistry(t, Options{RecordCreated: false})
	impl := f.impl(t, Question{})

	q, err := impl.Create(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), q.(*Question).ID)
	assert.False(t, f.mr.Exists("/Question/1"))
	assert.Equal(t, "1", f.mr.HGet("TypeCounters", "Question"))
}

func TestImplementation_CreateExternalIdentities(t *testing.T) {
	f := setupRegistry(t, DefaultOptions())
	ctx := context.Background()

	members := f.impl(t, Member{})
	_, err := members.Create(ctx, nil)
	assert.ErrorIs(t, err, ErrIdentityRequired)

	m, err := members.Create(ctx, "ann")
	require.NoError(t, err)
	assert.Equal(t, "ann", m.(*Member).Handle)
	assert.Empty(t, f.mr.Keys(), "external keys are not recorded")

	for _, err := range members.Enumerate(ctx) {
		t.Fatalf("externally keyed types enumerate nothing, got %v", err)
	}

	tokens := f.impl(t, Token{})
	tok, err := tokens.Create(ctx, nil)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, tok.(*Token).Id)

	tok, err = tokens.Create(ctx, "0b5e6c1e-4a4c-4a55-9d7b-0e1f1e7a4b11")
	require.NoError(t, err)
	assert.Equal(t, "0b5e6c1e-4a4c-4a55-9d7b-0e1f1e7a4b11", tok.(*Token).Id.String())

	_, err = f.impl(t, Question{}).Create(ctx, 9)
	assert.ErrorIs(t, err, ErrIdentityAssigned)
}

func TestImplementation_CreateAsync(t *testing.T) {
	f := setupRegistry(t, DefaultOptions())
	impl := f.impl(t, Question{})

	q, err := impl.CreateAsync(context.Background(), nil).Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), q.(*Question).ID)
}

func TestImplementation_GetMakesNoStoreCall(t *testing.T) {
	f := setupRegistry(t, DefaultOptions())
	impl := f.impl(t, Question{})

	before := f.counter.n.Load()
	q, err := impl.Get(7)
	require.NoError(t, err)
	assert.Equal(t, before, f.counter.n.Load())
	assert.Equal(t, int64(7), q.(*Question).ID)

	_, err = impl.Get("seven")
	assert.Error(t, err)
}

func TestImplementation_AbsentFieldsReadAsZero(t *testing.T) {
	f := setupRegistry(t, DefaultOptions())
	ctx := context.Background()

	q, err := f.impl(t, Question{}).Get(99)
	require.NoError(t, err)

	impl := f.impl(t, Question{})
	title, err := impl.GetField(ctx, q, "Title")
	require.NoError(t, err)
	assert.Equal(t, "", title)

	votes, err := impl.GetField(ctx, q, "Votes")
	require.NoError(t, err)
	assert.Equal(t, 0, votes)

	asker, err := impl.GetField(ctx, q, "Asker")
	require.NoError(t, err)
	assert.Nil(t, asker.(*Member))

	m, err := f.impl(t, Member{}).Get("ghost")
	require.NoError(t, err)
	email, err := f.impl(t, Member{}).GetField(ctx, m, "Email")
	require.NoError(t, err)
	assert.Nil(t, email.(*string))
}

func TestImplementation_ScalarFields(t *testing.T) {
	f := setupRegistry(t, DefaultOptions())
	impl := f.impl(t, Question{})
	ctx := context.Background()

	q, err := impl.Create(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, impl.SetField(ctx, q, "Title", "Why Go?"))
	require.NoError(t, impl.SetField(ctx, q, "Votes", 12))
	assert.Equal(t, "Why Go?", f.mr.HGet("/Question/1", "Title"))
	assert.Equal(t, "12", f.mr.HGet("/Question/1", "Votes"))

	title, err := impl.GetField(ctx, q, "Title")
	require.NoError(t, err)
	assert.Equal(t, "Why Go?", title)

	err = impl.SetField(ctx, q, "Votes", "twelve")
	assert.Error(t, err)

	_, err = impl.GetField(ctx, q, "Nope")
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = impl.GetField(ctx, &Member{Handle: "x"}, "Title")
	assert.ErrorIs(t, err, ErrNotAHandle)
}

func TestImplementation_NullableFields(t *testing.T) {
	f := setupRegistry(t, DefaultOptions())
	impl := f.impl(t, Member{})
	ctx := context.Background()

	m, err := impl.Get("ann")
	require.NoError(t, err)

	addr := "ann@example.com"
	require.NoError(t, impl.SetField(ctx, m, "Email", &addr))

	got, err := impl.GetField(ctx, m, "Email")
	require.NoError(t, err)
	require.NotNil(t, got.(*string))
	assert.Equal(t, addr, *got.(*string))

	require.NoError(t, impl.SetField(ctx, m, "Email", nil))
	assert.Empty(t, f.mr.HGet("/Member/ann", "Email"))
	assert.False(t, f.mr.Exists("/Member/Email_UIx"))
}

func TestImplementation_ReferencesDecodeWithoutExtraCalls(t *testing.T) {
	f := setupRegistry(t, DefaultOptions())
	questions := f.impl(t, Question{})
	members := f.impl(t, Member{})
	ctx := context.Background()

	q, err := questions.Create(ctx, nil)
	require.NoError(t, err)
	ann, err := members.Get("ann")
	require.NoError(t, err)

	require.NoError(t, questions.SetField(ctx, q, "Asker", ann))
	assert.Equal(t, "ann", f.mr.HGet("/Question/1", "Asker"))

	before := f.counter.n.Load()
	asker, err := questions.GetField(ctx, q, "Asker")
	require.NoError(t, err)
	assert.Equal(t, before+1, f.counter.n.Load())
	assert.Equal(t, "ann", asker.(*Member).Handle)

	require.NoError(t, questions.SetField(ctx, q, "Asker", (*Member)(nil)))
	assert.Empty(t, f.mr.HGet("/Question/1", "Asker"))
}

func TestImplementation_CollectionFields(t *testing.T) {
	f := setupRegistry(t, DefaultOptions())
	members := f.impl(t, Member{})
	questions := f.impl(t, Question{})
	ctx := context.Background()

	m, err := members.Get("ann")
	require.NoError(t, err)

	before := f.counter.n.Load()
	v, err := members.GetField(ctx, m, "Questions")
	require.NoError(t, err)
	assert.Equal(t, before, f.counter.n.Load(), "views are built without a store call")

	qs, ok := v.(*collection.List)
	require.True(t, ok)
	assert.Equal(t, "/Member/ann/Questions", qs.Key())

	q, err := questions.Create(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, qs.PushTail(ctx, q))

	stored, err := f.mr.List("/Member/ann/Questions")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, stored)

	for got, err := range qs.All(ctx) {
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.(*Question).ID)
	}

	// assigning a collection wholesale does nothing
	require.NoError(t, members.SetField(ctx, m, "Tags", []string{"x"}))
	assert.False(t, f.mr.Exists("/Member/ann/Tags"))

	v, err = members.GetField(ctx, m, "Friends")
	require.NoError(t, err)
	friends := v.(*collection.Set)
	bob, _ := members.Get("bob")
	added, err := friends.Add(ctx, bob)
	require.NoError(t, err)
	assert.True(t, added)
	assert.True(t, f.mr.Exists("/Member/ann/Friends"))
}

func TestImplementation_AsyncFields(t *testing.T) {
	f := setupRegistry(t, DefaultOptions())
	impl := f.impl(t, Member{})
	ctx := context.Background()

	m, err := impl.Get("ann")
	require.NoError(t, err)

	require.NoError(t, impl.SetField(ctx, m, "Score", int64(5)))

	v, err := impl.GetField(ctx, m, "Score")
	require.NoError(t, err)
	h, ok := v.(async.Handle[any])
	require.True(t, ok)
	assert.Equal(t, async.StatePendingRead, h.State())

	score, err := h.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), score)
}

func TestImplementation_UniqueWritesRace(t *testing.T) {
	f := setupRegistry(t, DefaultOptions())
	impl := f.impl(t, Member{})
	ctx := context.Background()

	ann, _ := impl.Get("ann")
	bob, _ := impl.Get("bob")

	prior := "bob@example.com"
	require.NoError(t, impl.SetField(ctx, bob, "Email", &prior))

	contested := "shared@example.com"
	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	for _, m := range []any{ann, bob} {
		g.Go(func() error {
			err := impl.SetField(ctx, m, "Email", &contested)
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	failures := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, index.ErrUniqueConstraintViolated)
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	annEmail := f.mr.HGet("/Member/ann", "Email")
	bobEmail := f.mr.HGet("/Member/bob", "Email")
	if annEmail == contested {
		assert.Equal(t, prior, bobEmail, "the loser keeps its prior value")
	} else {
		assert.Equal(t, contested, bobEmail)
		assert.Empty(t, annEmail, "the loser had no value")
	}
}

func TestImplementation_Lookup(t *testing.T) {
	f := setupRegistry(t, DefaultOptions())
	impl := f.impl(t, Member{})
	ctx := context.Background()

	ann, _ := impl.Get("ann")
	addr := "ann@example.com"
	require.NoError(t, impl.SetField(ctx, ann, "Email", &addr))
	require.NoError(t, impl.SetField(ctx, ann, "City", "Oslo"))

	found, err := impl.Lookup(ctx, query.Where("Email").Eq("ann@example.com"))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "ann", found[0].(*Member).Handle)

	found, err = impl.Lookup(ctx, query.Where("Email").Eq(&addr))
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = impl.Lookup(ctx, query.Where("City").Eq("Rome"))
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestImplementation_LookupRejectsShapesBeforeStoreCalls(t *testing.T) {
	f := setupRegistry(t, DefaultOptions())
	impl := f.impl(t, Member{})
	ctx := context.Background()

	tests := []struct {
		name string
		pred query.Predicate
	}{
		{"not equal", query.Where("Email").NotEq("x")},
		{"range", query.Where("City").Gt("A")},
		{"two fields", query.And(query.Where("Email").Eq("x"), query.Where("City").Eq("y"))},
		{"unindexed field", query.Where("Nickname").Eq("x")},
		{"unknown field", query.Where("Shoe").Eq("x")},
		{"collection field", query.Where("Tags").Eq("x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := f.counter.n.Load()
			_, err := impl.Lookup(ctx, tt.pred)
			assert.ErrorIs(t, err, query.ErrUnsupportedQueryShape)
			assert.Equal(t, before, f.counter.n.Load())
		})
	}
}

func TestImplementation_DeleteAndExists(t *testing.T) {
	f := setupRegistry(t, DefaultOptions())
	members := f.impl(t, Member{})
	questions := f.impl(t, Question{})
	ctx := context.Background()

	ann, _ := members.Get("ann")
	addr := "ann@example.com"
	require.NoError(t, members.SetField(ctx, ann, "Email", &addr))
	require.NoError(t, members.SetField(ctx, ann, "City", "Oslo"))
	tags, _ := members.GetField(ctx, ann, "Tags")
	_, err := tags.(*collection.Set).Add(ctx, "go")
	require.NoError(t, err)

	ok, err := members.Exists(ctx, "ann")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, members.Delete(ctx, ann))

	ok, err = members.Exists(ctx, "ann")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, f.mr.Keys())

	// the freed unique value can be claimed again
	bob, _ := members.Get("bob")
	require.NoError(t, members.SetField(ctx, bob, "Email", &addr))

	// deleted counter identities are still enumerated
	q, err := questions.Create(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, questions.Delete(ctx, q))
	count := 0
	for _, err := range questions.Enumerate(ctx) {
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 1, count)

	assert.ErrorIs(t, members.Delete(ctx, (*Member)(nil)), ErrNotAHandle)
}

func TestImplementation_FailedDeleteChangesNothing(t *testing.T) {
	f := setupRegistry(t, DefaultOptions())
	members := f.impl(t, Member{})
	ctx := context.Background()

	ann, _ := members.Get("ann")
	addr := "ann@example.com"
	require.NoError(t, members.SetField(ctx, ann, "Email", &addr))
	require.NoError(t, members.SetField(ctx, ann, "City", "Oslo"))

	f.counter.failPipelines.Store(true)
	err := members.Delete(ctx, ann)
	f.counter.failPipelines.Store(false)
	assert.ErrorIs(t, err, errConnectionReset)

	ok, err := members.Exists(ctx, "ann")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, addr, f.mr.HGet("/Member/ann", "Email"))
	assert.Equal(t, "Oslo", f.mr.HGet("/Member/ann", "City"))

	claimed, err := f.mr.SIsMember("/Member/Email_UIx", addr)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, "ann", f.mr.HGet("/Member/Email_Ix", addr))
	assert.Equal(t, "ann", f.mr.HGet("/Member/City_Ix", "Oslo"))

	bob, _ := members.Get("bob")
	err = members.SetField(ctx, bob, "Email", &addr)
	assert.ErrorIs(t, err, index.ErrUniqueConstraintViolated)
}

func TestImplementation_DeleteLeavesRepointedIndexEntries(t *testing.T) {
	f := setupRegistry(t, DefaultOptions())
	members := f.impl(t, Member{})
	ctx := context.Background()

	ann, _ := members.Get("ann")
	bob, _ := members.Get("bob")
	require.NoError(t, members.SetField(ctx, ann, "City", "Oslo"))
	require.NoError(t, members.SetField(ctx, bob, "City", "Oslo"))

	require.NoError(t, members.Delete(ctx, ann))
	assert.Equal(t, "bob", f.mr.HGet("/Member/City_Ix", "Oslo"))
}

func TestImplementation_Identity(t *testing.T) {
	f := setupRegistry(t, DefaultOptions())
	impl := f.impl(t, Token{})

	id := uuid.New()
	tok, err := impl.Get(id.String())
	require.NoError(t, err)

	got, err := impl.Identity(tok)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	s, err := impl.IdentityString(tok)
	require.NoError(t, err)
	assert.Equal(t, id.String(), s)

	assert.Equal(t, reflect.TypeOf(&Token{}), impl.HandleType())
}

func TestImplementation_Parse(t *testing.T) {
	f := setupRegistry(t, DefaultOptions())
	impl := f.impl(t, Question{})

	before := f.counter.n.Load()
	q, err := impl.Parse("7")
	require.NoError(t, err)
	assert.Equal(t, int64(7), q.(*Question).ID)
	assert.Equal(t, before, f.counter.n.Load())

	_, err = impl.Parse("seven")
	assert.Error(t, err)

	s, err := f.reg.IdentityOf(q)
	require.NoError(t, err)
	assert.Equal(t, "7", s)

	_, err = f.reg.IdentityOf(Question{})
	assert.ErrorIs(t, err, ErrNotAHandle)
}

func TestBinding(t *testing.T) {
	f := setupRegistry(t, DefaultOptions())
	impl := f.impl(t, Member{})
	ctx := context.Background()

	m, _ := impl.Get("ann")
	member := m.(*Member)

	b := member.City.b
	require.NotNil(t, b)
	assert.Equal(t, "City", b.Field().Name)
	assert.Equal(t, "/Member/ann", b.Key())
	assert.Equal(t, "/Member/ann/Tags", member.Tags.b.Key())

	require.NoError(t, b.Write(ctx, "Oslo"))
	v, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Oslo", v)

	_, err = member.Score.b.WriteAsync(ctx, int64(3)).Wait(ctx)
	require.NoError(t, err)
	v, err = member.Score.b.ReadAsync(ctx).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	added, err := member.Tags.b.Set().Add(ctx, "go")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, "/Member/ann/Questions", member.Questions.b.List().Key())
}
