package memegen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImgflipClient_Templates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/get_memes", r.URL.Path)
		var memes []string
		for i := 0; i < 120; i++ {
			memes = append(memes, fmt.Sprintf(`{"id":"%d","name":"Template %d","box_count":2}`, i, i))
		}
		fmt.Fprintf(w, `{"success":true,"data":{"memes":[%s]}}`, strings.Join(memes, ","))
	}))
	defer server.Close()

	c := NewImgflipClient(server.URL+"/", "u", "p", nil)
	templates, err := c.Templates(context.Background())
	require.NoError(t, err)
	assert.Len(t, templates, MaxTemplates)
	assert.Equal(t, "0", templates[0].ID)
	assert.Equal(t, "Template 99", templates[99].Name)
	assert.Equal(t, 2, templates[0].BoxCount)
}

func TestImgflipClient_Caption(t *testing.T) {
	tests := []struct {
		name   string
		boxes  []string
		expect map[string]string
		absent []string
	}{
		{
			name:   "TwoBoxesUseTextFields",
			boxes:  []string{"top", "bottom"},
			expect: map[string]string{"text0": "top", "text1": "bottom"},
			absent: []string{"boxes[0][text]"},
		},
		{
			name:   "OneBoxPadsSecond",
			boxes:  []string{"only"},
			expect: map[string]string{"text0": "only", "text1": ""},
		},
		{
			name:   "ThreeBoxesUseBoxesArray",
			boxes:  []string{"a", "b", "c"},
			expect: map[string]string{"boxes[0][text]": "a", "boxes[1][text]": "b", "boxes[2][text]": "c"},
			absent: []string{"text0", "text1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/caption_image", r.URL.Path)
				require.NoError(t, r.ParseForm())
				assert.Equal(t, "181913649", r.PostForm.Get("template_id"))
				assert.Equal(t, "u", r.PostForm.Get("username"))
				assert.Equal(t, "p", r.PostForm.Get("password"))
				for k, v := range tt.expect {
					assert.Equal(t, v, r.PostForm.Get(k), k)
				}
				for _, k := range tt.absent {
					_, ok := r.PostForm[k]
					assert.False(t, ok, k)
				}
				w.Write([]byte(`{"success":true,"data":{"url":"https://i.imgflip.com/abc.jpg"}}`))
			}))
			defer server.Close()

			c := NewImgflipClient(server.URL, "u", "p", nil)
			url, err := c.Caption(context.Background(), "181913649", tt.boxes)
			require.NoError(t, err)
			assert.Equal(t, "https://i.imgflip.com/abc.jpg", url)
		})
	}
}

func TestImgflipClient_CaptionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error_message":"Invalid username/password"}`))
	}))
	defer server.Close()

	c := NewImgflipClient(server.URL, "u", "wrong", nil)
	_, err := c.Caption(context.Background(), "1", []string{"a", "b"})

	var ge *Error
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, KindUpstream, ge.Kind)
	assert.Equal(t, "Failed to generate meme. Invalid username/password", ge.Message)
}

func TestImgflipClient_TemplatesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewImgflipClient(server.URL, "u", "p", nil).Templates(context.Background())

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Code)
}
