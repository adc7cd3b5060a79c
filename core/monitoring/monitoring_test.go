package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	errs    []error
	tags    []map[string]string
	flushed time.Duration
}

func (r *recorder) CaptureException(err error, tags map[string]string) {
	r.errs = append(r.errs, err)
	r.tags = append(r.tags, tags)
}

func (r *recorder) Flush(d time.Duration) { r.flushed = d }

func TestGlobalMonitor(t *testing.T) {
	rec := &recorder{}
	Init(rec)
	defer Init(nil)

	CaptureException(nil, nil)
	CaptureException(errors.New("boom"), map[string]string{"component": "playback"})
	Flush(time.Second)

	assert.Len(t, rec.errs, 1)
	assert.Equal(t, "playback", rec.tags[0]["component"])
	assert.Equal(t, time.Second, rec.flushed)

	Init(nil)
	assert.NotPanics(t, func() { CaptureException(errors.New("ignored"), nil) })
	assert.Len(t, rec.errs, 1)
}
