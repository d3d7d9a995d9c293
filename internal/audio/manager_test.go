/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package audio

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// recordingHooks is an in-memory HookRegistry
type recordingHooks struct {
	mu           sync.Mutex
	hooks        map[string]func()
	registered   int
	deregistered int
}

func newRecordingHooks() *recordingHooks {
	return &recordingHooks{hooks: make(map[string]func())}
}

func (h *recordingHooks) Register(name string, fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks[name] = fn
	h.registered++
}

func (h *recordingHooks) Deregister(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.hooks, name)
	h.deregistered++
}

func (h *recordingHooks) get(name string) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hooks[name]
}

// recordingObserver counts events
type recordingObserver struct {
	backend   string
	attempts  []Attempt
	created   []string
	removed   []string
	rejected  []error
	cleanedUp int
}

func (o *recordingObserver) BackendSelected(backend string, attempts []Attempt) {
	o.backend = backend
	o.attempts = attempts
}
func (o *recordingObserver) ObjectCreated(obj Object) { o.created = append(o.created, obj.SystemName()) }
func (o *recordingObserver) ObjectRemoved(obj Object) { o.removed = append(o.removed, obj.SystemName()) }
func (o *recordingObserver) CreateRejected(_ Category, err error) {
	o.rejected = append(o.rejected, err)
}
func (o *recordingObserver) CleanedUp(string) { o.cleanedUp++ }

// foreignObject carries a category the manager never issues
type foreignObject struct{ namedObject }

func (foreignObject) Release() error { return nil }
func (foreignObject) Released() bool { return false }

func names(objs []Object) []string {
	out := make([]string, len(objs))
	for i, o := range objs {
		out[i] = o.SystemName()
	}
	return out
}

func TestManager_InitCreatesDefaultListener(t *testing.T) {
	backend := NewMockBackend("mock")
	m := newTestManager(t, backend, DefaultLimits())

	assert.False(t, m.IsInitialized())
	assert.Equal(t, StateUninitialized, m.State())

	require.NoError(t, m.Init())
	assert.True(t, m.IsInitialized())
	assert.Equal(t, StateActive, m.State())
	assert.Same(t, backend, m.ActiveBackend())

	listeners, err := m.ListByCategory(CategoryListener)
	require.NoError(t, err)
	require.Len(t, listeners, 1)
	assert.Equal(t, DefaultListenerSystemName, listeners[0].SystemName())
	assert.Equal(t, DefaultListenerUserName, listeners[0].UserName())
	assert.Equal(t, 1, m.Count(CategoryListener))

	// Init is idempotent while active
	require.NoError(t, m.Init())
	assert.Equal(t, 1, backend.InitCalls())
	assert.Equal(t, 1, m.Count(CategoryListener))
}

func TestManager_LazyInit(t *testing.T) {
	backend := NewMockBackend("mock")
	m := newTestManager(t, backend, DefaultLimits())

	obj, err := m.CreateObject("IAS1", "Whistle", CategorySource)
	require.NoError(t, err)
	assert.Equal(t, "IAS1", obj.SystemName())
	assert.IsType(t, &Source{}, obj)

	assert.True(t, m.IsInitialized(), "creation initializes the manager")
	assert.Equal(t, 1, backend.InitCalls())
	assert.NotNil(t, m.BySystemName(DefaultListenerSystemName), "lazy init still creates the default listener")
	assert.Same(t, obj, m.ByUserName("Whistle"))
}

func TestManager_CounterMatchesSet(t *testing.T) {
	m := newTestManager(t, NewMockBackend("mock"), Limits{Listeners: 1, Sources: 20, Buffers: 20})
	require.NoError(t, m.Init())

	for i := 1; i <= 20; i++ {
		c := CategorySource
		if i%2 == 0 {
			c = CategoryBuffer
		}
		_, err := m.CreateObject(SystemName(c, fmt.Sprint(i)), "", c)
		require.NoError(t, err)

		for _, cat := range Categories {
			set, err := m.ListByCategory(cat)
			require.NoError(t, err)
			assert.Equal(t, len(set), m.Count(cat), "counter must equal set size for %s", cat)
		}
	}
	assert.Equal(t, 10, m.Count(CategorySource))
	assert.Equal(t, 10, m.Count(CategoryBuffer))
}

func TestManager_CapacityExceeded(t *testing.T) {
	obs := &recordingObserver{}
	m := newTestManager(t, NewMockBackend("mock"), Limits{Listeners: 1, Sources: 3, Buffers: 1},
		func(o *Options) { o.Observers = []Observer{obs} })

	for i := 1; i <= 3; i++ {
		_, err := m.CreateObject(SystemName(CategorySource, fmt.Sprint(i)), "", CategorySource)
		require.NoError(t, err)
	}
	before, err := m.ListByCategory(CategorySource)
	require.NoError(t, err)

	_, err = m.CreateObject("IAS4", "Overflow", CategorySource)
	require.ErrorIs(t, err, ErrCapacityExceeded)

	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, CategorySource, capErr.Category)
	assert.Equal(t, 3, capErr.Count)
	assert.Equal(t, 3, capErr.Limit)

	after, err := m.ListByCategory(CategorySource)
	require.NoError(t, err)
	assert.Equal(t, names(before), names(after), "failed creation must not change the set")
	assert.Equal(t, 3, m.Count(CategorySource))
	assert.Nil(t, m.ByUserName("Overflow"), "user name must not be reserved by a failed creation")

	t.Run("second_listener_rejected", func(t *testing.T) {
		_, err := m.CreateObject("IAL2", "", CategoryListener)
		assert.ErrorIs(t, err, ErrCapacityExceeded)
	})

	require.NotEmpty(t, obs.rejected)
	assert.ErrorIs(t, obs.rejected[0], ErrCapacityExceeded)
}

func TestManager_DuplicateNames(t *testing.T) {
	m := newTestManager(t, NewMockBackend("mock"), DefaultLimits())

	_, err := m.CreateObject("IAS1", "Bell", CategorySource)
	require.NoError(t, err)

	tests := []struct {
		name       string
		systemName string
		userName   string
		category   Category
	}{
		{name: "user_name_same_category", systemName: "IAS2", userName: "Bell", category: CategorySource},
		{name: "user_name_other_category", systemName: "IAB1", userName: "Bell", category: CategoryBuffer},
		{name: "default_listener_user_name", systemName: "IAB2", userName: DefaultListenerUserName, category: CategoryBuffer},
		{name: "system_name", systemName: "IAS1", userName: "Horn", category: CategorySource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srcBefore, bufBefore := m.Count(CategorySource), m.Count(CategoryBuffer)

			_, err := m.CreateObject(tt.systemName, tt.userName, tt.category)
			require.ErrorIs(t, err, ErrDuplicateName)

			assert.Equal(t, srcBefore, m.Count(CategorySource))
			assert.Equal(t, bufBefore, m.Count(CategoryBuffer))
		})
	}

	t.Run("empty_user_names_do_not_collide", func(t *testing.T) {
		_, err := m.CreateObject("IAB10", "", CategoryBuffer)
		require.NoError(t, err)
		_, err = m.CreateObject("IAB11", "", CategoryBuffer)
		require.NoError(t, err)
	})
}

func TestManager_UnrecognizedCategory(t *testing.T) {
	m := newTestManager(t, NewMockBackend("mock"), DefaultLimits())
	require.NoError(t, m.Init())

	_, err := m.CreateObject("IAB1", "", CategorySource)
	assert.ErrorIs(t, err, ErrUnrecognizedCategory, "system name must encode the requested category")

	_, err = m.CreateObject("IAX1", "", Category('X'))
	assert.ErrorIs(t, err, ErrUnrecognizedCategory)

	_, err = m.ListByCategory(Category('X'))
	assert.ErrorIs(t, err, ErrUnrecognizedCategory)

	foreign := foreignObject{namedObject{systemName: "IAX1", category: Category('X')}}
	assert.ErrorIs(t, m.Deregister(foreign), ErrUnrecognizedCategory)
}

func TestManager_Deregister(t *testing.T) {
	obs := &recordingObserver{}
	m := newTestManager(t, NewMockBackend("mock"), Limits{Listeners: 1, Sources: 1, Buffers: 1},
		func(o *Options) { o.Observers = []Observer{obs} })

	src, err := m.CreateObject("IAS1", "Whistle", CategorySource)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Count(CategorySource))

	require.NoError(t, m.Deregister(src))
	assert.Equal(t, 0, m.Count(CategorySource))
	assert.True(t, src.Released(), "deregistration releases the native handle")
	assert.Nil(t, m.BySystemName("IAS1"))
	assert.Equal(t, []string{"IAS1"}, obs.removed)

	// Slot and name are free again
	again, err := m.CreateObject("IAS1", "Whistle", CategorySource)
	require.NoError(t, err)
	assert.NotSame(t, src, again)

	assert.ErrorIs(t, m.Deregister(src), ErrNotRegistered, "stale object is no longer held")
	assert.ErrorIs(t, m.Deregister(nil), ErrNotRegistered)
	assert.ErrorIs(t, m.Deregister((*Source)(nil)), ErrNotRegistered)
	assert.ErrorIs(t, m.Deregister((*Listener)(nil)), ErrNotRegistered)
	assert.ErrorIs(t, m.Deregister((*Buffer)(nil)), ErrNotRegistered)
	assert.Equal(t, 1, m.Count(CategorySource), "failed deregistration leaves the counter alone")
}

func TestManager_ReleaseWithoutDeregister(t *testing.T) {
	m := newTestManager(t, NewMockBackend("mock"), Limits{Listeners: 1, Sources: 1, Buffers: 1})

	src, err := m.CreateObject("IAS1", "Bell", CategorySource)
	require.NoError(t, err)
	require.NoError(t, src.Release())
	assert.True(t, src.Released())

	assert.Equal(t, 1, m.Count(CategorySource), "release alone keeps the slot")
	assert.Same(t, src, m.ByUserName("Bell"))
	_, err = m.CreateObject("IAS2", "", CategorySource)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	require.NoError(t, m.Deregister(src), "a released object can still be deregistered")
	assert.Equal(t, 0, m.Count(CategorySource))
	_, err = m.CreateObject("IAS2", "Bell", CategorySource)
	assert.NoError(t, err)
}

func TestManager_ListByCategoryOrderAndSnapshot(t *testing.T) {
	m := newTestManager(t, NewMockBackend("mock"), DefaultLimits())

	for _, sys := range []string{"IAS3", "IAS1", "IAS20", "IAS2"} {
		_, err := m.CreateObject(sys, "", CategorySource)
		require.NoError(t, err)
	}

	list, err := m.ListByCategory(CategorySource)
	require.NoError(t, err)
	assert.Equal(t, []string{"IAS1", "IAS2", "IAS3", "IAS20"}, names(list), "numeric suffixes sort by value")

	list[0] = nil

	again, err := m.ListByCategory(CategorySource)
	require.NoError(t, err)
	assert.Equal(t, []string{"IAS1", "IAS2", "IAS3", "IAS20"}, names(again), "callers cannot mutate the registry")

	t.Run("natural_order_survives_removal", func(t *testing.T) {
		for _, sys := range []string{"IAB10", "IAB9", "IAB2", "IAB1"} {
			_, err := m.CreateObject(sys, "", CategoryBuffer)
			require.NoError(t, err)
		}
		buffers, err := m.ListByCategory(CategoryBuffer)
		require.NoError(t, err)
		assert.Equal(t, []string{"IAB1", "IAB2", "IAB9", "IAB10"}, names(buffers))

		require.NoError(t, m.Deregister(m.BySystemName("IAB9")))
		buffers, err = m.ListByCategory(CategoryBuffer)
		require.NoError(t, err)
		assert.Equal(t, []string{"IAB1", "IAB2", "IAB10"}, names(buffers))
		assert.Equal(t, 3, m.Count(CategoryBuffer))
	})

	t.Run("leading_zeros_stay_distinct", func(t *testing.T) {
		_, err := m.CreateObject("IAB01", "", CategoryBuffer)
		require.NoError(t, err)
		require.NotNil(t, m.BySystemName("IAB1"))
		require.NotNil(t, m.BySystemName("IAB01"))

		require.NoError(t, m.Deregister(m.BySystemName("IAB01")))
		assert.NotNil(t, m.BySystemName("IAB1"), "removing IAB01 must not remove IAB1")
	})

	empty, err := m.ListByCategory(CategoryBuffer)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestManager_Cleanup(t *testing.T) {
	backend := NewMockBackend("mock")
	hooks := newRecordingHooks()
	obs := &recordingObserver{}
	m := newTestManager(t, backend, DefaultLimits(), func(o *Options) {
		o.Hooks = hooks
		o.Observers = []Observer{obs}
	})

	require.NoError(t, m.Init())
	src, err := m.CreateObject("IAS1", "Bell", CategorySource)
	require.NoError(t, err)
	buf, err := m.CreateObject("IAB1", "", CategoryBuffer)
	require.NoError(t, err)
	listener := m.BySystemName(DefaultListenerSystemName)

	m.Cleanup()

	assert.False(t, m.IsInitialized())
	assert.Equal(t, StateUninitialized, m.State())
	assert.Nil(t, m.ActiveBackend())
	for _, c := range Categories {
		assert.Equal(t, 0, m.Count(c), "counter for %s", c)
		set, err := m.ListByCategory(c)
		require.NoError(t, err)
		assert.Empty(t, set, "set for %s", c)
	}
	assert.Equal(t, 1, backend.CleanupCalls())
	assert.True(t, src.Released())
	assert.True(t, buf.Released())
	assert.True(t, listener.Released())
	assert.Nil(t, hooks.get(shutdownHookName), "cleanup deregisters the shutdown hook")
	assert.Equal(t, 1, obs.cleanedUp)

	m.Cleanup()
	assert.Equal(t, 1, backend.CleanupCalls(), "backend cleanup runs once per init")
	assert.Equal(t, 1, obs.cleanedUp)
}

func TestManager_CleanupLogsBackendError(t *testing.T) {
	backend := NewMockBackend("mock")
	backend.SetCleanupError(errors.New("device busy"))
	m := newTestManager(t, backend, DefaultLimits())
	require.NoError(t, m.Init())

	m.Cleanup()
	assert.False(t, m.IsInitialized(), "backend cleanup errors do not block shutdown")
	assert.Equal(t, 0, m.Count(CategoryListener))
}

func TestManager_InitCleanupCycle(t *testing.T) {
	backend := NewMockBackend("mock")
	m := newTestManager(t, backend, DefaultLimits())

	snapshot := func() map[Category][]string {
		out := make(map[Category][]string)
		for _, c := range Categories {
			set, err := m.ListByCategory(c)
			require.NoError(t, err)
			out[c] = names(set)
		}
		return out
	}

	require.NoError(t, m.Init())
	first := snapshot()
	firstUser := m.BySystemName(DefaultListenerSystemName).UserName()

	for i := 0; i < 3; i++ {
		m.Cleanup()
		require.NoError(t, m.Init())

		assert.True(t, m.IsInitialized())
		assert.Equal(t, first, snapshot(), "cycle %d", i)
		assert.Equal(t, firstUser, m.BySystemName(DefaultListenerSystemName).UserName())
		assert.Equal(t, 1, m.Count(CategoryListener))
	}
	assert.Equal(t, 4, backend.InitCalls())
	assert.Equal(t, 3, backend.CleanupCalls())
}

func TestManager_DefaultListenerFailureIsSwallowed(t *testing.T) {
	t.Run("backend_error", func(t *testing.T) {
		backend := NewMockBackend("mock")
		backend.SetCreateError(CategoryListener, errors.New("no listener support"))
		m := newTestManager(t, backend, DefaultLimits())

		require.NoError(t, m.Init())
		assert.True(t, m.IsInitialized(), "manager stays active without a default listener")
		assert.Equal(t, 0, m.Count(CategoryListener))

		_, err := m.CreateObject("IAS1", "", CategorySource)
		assert.NoError(t, err, "other categories keep working")
	})

	t.Run("zero_listener_limit", func(t *testing.T) {
		m := newTestManager(t, NewMockBackend("mock"), Limits{Listeners: 0, Sources: 1, Buffers: 1})

		require.NoError(t, m.Init())
		assert.True(t, m.IsInitialized())
		assert.Equal(t, 0, m.Count(CategoryListener))
	})
}

func TestManager_BackendCreateFailure(t *testing.T) {
	backend := NewMockBackend("mock")
	m := newTestManager(t, backend, DefaultLimits())
	require.NoError(t, m.Init())

	backend.SetCreateError(CategorySource, errors.New("voice allocation failed"))
	_, err := m.CreateObject("IAS1", "Bell", CategorySource)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "voice allocation failed")
	assert.Equal(t, 0, m.Count(CategorySource))
	assert.Nil(t, m.ByUserName("Bell"))
}

func TestManager_ShutdownHook(t *testing.T) {
	backend := NewMockBackend("mock")
	hooks := newRecordingHooks()
	m := newTestManager(t, backend, DefaultLimits(), func(o *Options) { o.Hooks = hooks })

	require.NoError(t, m.Init())
	assert.Equal(t, 1, hooks.registered)
	hook := hooks.get(shutdownHookName)
	require.NotNil(t, hook)

	hook()
	assert.False(t, m.IsInitialized(), "the hook runs cleanup")
	assert.Equal(t, 1, backend.CleanupCalls())
	assert.Equal(t, 1, hooks.deregistered)

	require.NoError(t, m.Init())
	assert.Equal(t, 2, hooks.registered, "each init registers the hook once")
}

func TestManager_Dispose(t *testing.T) {
	backend := NewMockBackend("mock")
	m := newTestManager(t, backend, DefaultLimits())

	_, err := m.CreateObject("IAB1", "", CategoryBuffer)
	require.NoError(t, err)

	m.Dispose()
	assert.Equal(t, StateDisposed, m.State())
	assert.False(t, m.IsInitialized())
	assert.Equal(t, 1, backend.CleanupCalls())

	_, err = m.CreateObject("IAB2", "", CategoryBuffer)
	assert.ErrorIs(t, err, ErrDisposed)
	assert.ErrorIs(t, m.Init(), ErrDisposed)

	m.Dispose()
	assert.Equal(t, 1, backend.CleanupCalls())
}

func TestManager_Observers(t *testing.T) {
	obs := &recordingObserver{}
	failing := NewMockBackend("broken")
	failing.SetInitError(errors.New("no device"))
	working := NewMockBackend("mock")

	m := NewManager(Options{
		Selector:  NewSelector("", DefaultEngineConfig(), WithCandidates(mockCandidates(failing, working)...)),
		Observers: []Observer{obs},
	})
	defer m.Dispose()

	require.NoError(t, m.Init())
	assert.Equal(t, "mock", obs.backend)
	require.Len(t, obs.attempts, 2)
	assert.False(t, obs.attempts[0].Succeeded())
	assert.True(t, obs.attempts[1].Succeeded())
	assert.Equal(t, []string{DefaultListenerSystemName}, obs.created)
}

func TestManager_ConcurrentCreate(t *testing.T) {
	defer goleak.VerifyNone(t)

	const (
		limit   = 10
		callers = 50
	)
	m := newTestManager(t, NewMockBackend("mock"), Limits{Listeners: 1, Sources: limit, Buffers: 1})

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		capacity  int
		other     []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.CreateObject(SystemName(CategorySource, fmt.Sprint(i)), fmt.Sprintf("Source %d", i), CategorySource)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrCapacityExceeded):
				capacity++
			default:
				other = append(other, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Empty(t, other)
	assert.Equal(t, limit, successes)
	assert.Equal(t, callers-limit, capacity)
	assert.Equal(t, successes, m.Count(CategorySource))

	set, err := m.ListByCategory(CategorySource)
	require.NoError(t, err)
	assert.Len(t, set, successes)
}

func TestManager_ConcurrentLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := newTestManager(t, NewMockBackend("mock"), Limits{Listeners: 1, Sources: 64, Buffers: 64})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				obj, err := m.CreateObject(SystemName(CategoryBuffer, fmt.Sprintf("%d-%d", i, j)), "", CategoryBuffer)
				if err == nil {
					_ = m.Deregister(obj)
				}
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				m.Cleanup()
				_ = m.Init()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				for _, c := range Categories {
					set, err := m.ListByCategory(c)
					if err == nil {
						assert.LessOrEqual(t, len(set), m.Limit(c))
					}
				}
			}
		}()
	}
	wg.Wait()

	require.NoError(t, m.Init())
	for _, c := range Categories {
		set, err := m.ListByCategory(c)
		require.NoError(t, err)
		assert.Equal(t, len(set), m.Count(c))
	}
}
