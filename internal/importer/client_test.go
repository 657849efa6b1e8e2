package importer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/otahak/herald/internal/config"
	"github.com/otahak/herald/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractListID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "raw id passes through",
			input: "aBcD1234",
			want:  "aBcD1234",
		},
		{
			name:  "share query url",
			input: "https://army-forge.onepagerules.com/share?id=Xy_9-abc&name=MyArmy",
			want:  "Xy_9-abc",
		},
		{
			name:  "listbuilder share path url",
			input: "https://army-forge.onepagerules.com/listbuilder/share/Xy9abc",
			want:  "Xy9abc",
		},
		{
			name:    "url without an id",
			input:   "https://army-forge.onepagerules.com/listbuilder",
			wantErr: true,
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractListID(tt.input)
			if tt.wantErr {
				assert.Equal(t, errors.ErrInvalidParam, errors.GetCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newTestClient(baseURL string) *Client {
	return NewClient(&config.ImportConfig{
		BaseURL:        baseURL,
		RequestTimeout: 2 * time.Second,
		MaxRetries:     2,
		RetryInterval:  time.Millisecond,
	})
}

const sampleListJSON = `{
	"gameSystem": "grimdark-future",
	"units": [
		{
			"armyId": "a1",
			"id": "u1",
			"selectionId": "sel1",
			"name": "Storm Troopers",
			"quality": 4,
			"defense": 4,
			"size": 5,
			"cost": 150,
			"rules": [{"name": "Strider"}]
		},
		{
			"armyId": "a1",
			"id": "u2",
			"selectionId": "sel2",
			"name": "Commander",
			"joinToUnit": "sel1",
			"quality": 3,
			"defense": 3,
			"size": 1,
			"cost": 100,
			"rules": [{"name": "Hero"}, {"name": "Tough", "rating": 3}]
		}
	]
}`

func TestFetchList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tts", r.URL.Path)
		assert.Equal(t, "list123", r.URL.Query().Get("id"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleListJSON))
	}))
	defer srv.Close()

	list, err := newTestClient(srv.URL).FetchList(context.Background(), "list123")
	require.NoError(t, err)

	require.Len(t, list.Units, 2)
	assert.Equal(t, "Storm Troopers", list.Units[0].Name)
	assert.Equal(t, 150, list.Units[0].Cost)
	require.NotNil(t, list.Units[1].JoinToUnit)
	assert.Equal(t, "sel1", *list.Units[1].JoinToUnit)
}

func TestFetchListNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchList(context.Background(), "missing")
	assert.Equal(t, errors.ErrNotFound, errors.GetCode(err))
}

func TestFetchListRetriesUpstreamErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(sampleListJSON))
	}))
	defer srv.Close()

	list, err := newTestClient(srv.URL).FetchList(context.Background(), "flaky")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, list.Units, 2)
}

func TestFetchListUpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchList(context.Background(), "down")
	assert.Equal(t, errors.ErrImportUpstream, errors.GetCode(err))
}

func TestFetchListBadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"units": []}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchList(context.Background(), "empty")
	assert.Equal(t, errors.ErrImportBadList, errors.GetCode(err))
}
