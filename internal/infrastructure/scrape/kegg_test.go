package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/turtacn/enzbench/pkg/errors"
)

func TestKEGG_GetMolfile(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		switch r.URL.Path {
		case "/get/C00001/mol":
			fmt.Fprint(w, "C00001\n  mol\n\nM  END\n")
		case "/get/C99999/mol":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	k := NewKEGG(testClient(newMemCache()), srv.URL+"/")
	assert.Equal(t, srv.URL+"/get/C00002/mol", k.MolfileURL("C00002"))

	mol, err := k.GetMolfile(context.Background(), "C00001")
	require.NoError(t, err)
	assert.Contains(t, string(mol), "M  END")
	_, err = k.GetMolfile(context.Background(), "C00001")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	_, err = k.GetMolfile(context.Background(), "C99999")
	assert.True(t, errs.IsNotFound(err))

	_, err = k.GetMolfile(context.Background(), "G00000")
	assert.True(t, errs.IsCode(err, errs.ErrCodeToolRejected))
}
