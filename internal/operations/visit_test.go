package operations

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zentaocli/internal/browser/browsertest"
	"zentaocli/internal/retry"
)

func TestPipelineVisit(t *testing.T) {
	dir := t.TempDir()
	site := newFakeSite(t, dir)
	opener := &browsertest.Opener{Session: site.sess}
	rep := NewReporter(context.Background(), 1024, quietLogger())

	var id, base string
	err := testPipeline(site, opener).Visit(context.Background(), exportRequest(dir).Credentials, true, "网关", rep,
		func(ctx context.Context, pg *Page) error {
			id, base = pg.EntityID, pg.BaseURL
			if err := pg.Navigate(ctx, pg.BaseURL+"/bug-browse-12.html"); err != nil {
				return err
			}
			site.sess.Show("#bugList")
			return pg.WaitExists(ctx, "#bugList")
		})
	evs := collect(rep, err)
	require.NoError(t, err)

	assert.Equal(t, "12", id)
	assert.Equal(t, testBaseURL, base)
	assert.Equal(t, []int{5, 15, 30, 40, 100}, progressOf(evs))
	assert.Contains(t, site.sess.Calls(), "navigate "+testBaseURL+"/bug-browse-12.html")
	assert.Equal(t, 1, site.sess.CloseCount())
}

func TestPipelineVisit_Failures(t *testing.T) {
	t.Run("work error", func(t *testing.T) {
		dir := t.TempDir()
		site := newFakeSite(t, dir)
		rep := NewReporter(context.Background(), 1024, quietLogger())

		boom := errors.New("scrape failed")
		err := testPipeline(site, &browsertest.Opener{Session: site.sess}).Visit(context.Background(),
			exportRequest(dir).Credentials, true, "网关", rep,
			func(context.Context, *Page) error { return boom })
		collect(rep, err)

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, site.sess.CloseCount())
	})

	t.Run("element never appears", func(t *testing.T) {
		dir := t.TempDir()
		site := newFakeSite(t, dir)
		rep := NewReporter(context.Background(), 1024, quietLogger())

		err := testPipeline(site, &browsertest.Opener{Session: site.sess}).Visit(context.Background(),
			exportRequest(dir).Credentials, true, "网关", rep,
			func(ctx context.Context, pg *Page) error { return pg.WaitExists(ctx, "#missing") })
		collect(rep, err)

		assert.ErrorIs(t, err, retry.ErrTimeout)
		assert.Equal(t, 1, site.sess.CloseCount())
	})

	t.Run("product missing", func(t *testing.T) {
		dir := t.TempDir()
		site := newFakeSite(t, dir)
		rep := NewReporter(context.Background(), 1024, quietLogger())

		called := false
		err := testPipeline(site, &browsertest.Opener{Session: site.sess}).Visit(context.Background(),
			exportRequest(dir).Credentials, true, "不存在", rep,
			func(context.Context, *Page) error { called = true; return nil })
		collect(rep, err)

		assert.Error(t, err)
		assert.False(t, called)
	})
}
