package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/permitworks/backend/internal/domain/models"
	appErrors "github.com/permitworks/backend/pkg/errors"
)

type fakeFinder struct {
	ids []string
	err error
}

func (f *fakeFinder) FindExpiredActiveIDs(_ context.Context, _ time.Time) ([]string, error) {
	return f.ids, f.err
}

type fakeCompleter struct {
	completed []string
	errs      map[string]error
}

func (f *fakeCompleter) Complete(_ context.Context, id string, actor *models.UserSession) error {
	if err, ok := f.errs[id]; ok {
		return err
	}
	f.completed = append(f.completed, id)
	return nil
}

func TestRunExpirySweepCompletesExpiredPermits(t *testing.T) {
	finder := &fakeFinder{ids: []string{"app-1", "app-2"}}
	completer := &fakeCompleter{}
	sweeper := NewSweeperService(finder, completer, "@every 1m")

	count, err := sweeper.RunExpirySweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"app-1", "app-2"}, completer.completed)

	// Swept permits are no longer ACTIVE, so a second pass finds nothing.
	finder.ids = nil
	count, err = sweeper.RunExpirySweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRunExpirySweepSkipsRacedPermits(t *testing.T) {
	finder := &fakeFinder{ids: []string{"app-1", "app-2", "app-3"}}
	completer := &fakeCompleter{errs: map[string]error{
		// A user confirmed exit between the query and the sweep.
		"app-2": appErrors.NewInvalidTransitionError("complete expired permit", "COMPLETED", "ACTIVE"),
	}}
	sweeper := NewSweeperService(finder, completer, "@every 1m")

	count, err := sweeper.RunExpirySweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"app-1", "app-3"}, completer.completed)
}

func TestRunExpirySweepContinuesPastFailures(t *testing.T) {
	finder := &fakeFinder{ids: []string{"app-1", "app-2"}}
	completer := &fakeCompleter{errs: map[string]error{
		"app-1": errors.New("connection reset"),
	}}
	sweeper := NewSweeperService(finder, completer, "@every 1m")

	count, err := sweeper.RunExpirySweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"app-2"}, completer.completed)
}

func TestRunExpirySweepPropagatesQueryError(t *testing.T) {
	finder := &fakeFinder{err: errors.New("table gone")}
	sweeper := NewSweeperService(finder, &fakeCompleter{}, "@every 1m")

	_, err := sweeper.RunExpirySweep(context.Background(), time.Now())
	assert.Error(t, err)
}
