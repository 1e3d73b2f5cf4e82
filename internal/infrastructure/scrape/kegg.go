package scrape

import (
	"context"
	"net/http"
	"strings"

	errs "github.com/turtacn/enzbench/pkg/errors"
)

// ToolKEGG labels KEGG REST calls.
const ToolKEGG = "kegg"

// KEGG reads compound structures from the KEGG REST API.
type KEGG struct {
	client  *Client
	baseURL string
}

// NewKEGG returns a KEGG client rooted at baseURL, e.g. http://rest.kegg.jp.
func NewKEGG(client *Client, baseURL string) *KEGG {
	return &KEGG{client: client, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// MolfileURL returns the REST location of the molfile of id.
func (k *KEGG) MolfileURL(id string) string {
	return k.baseURL + "/get/" + id + "/mol"
}

// GetMolfile downloads the MDL molfile of a compound or glycan id. Responses
// are cached when the client has a cache.
func (k *KEGG) GetMolfile(ctx context.Context, id string) ([]byte, error) {
	resp, err := k.client.Do(ctx, Request{Method: http.MethodGet, URL: k.MolfileURL(id), Tool: ToolKEGG, Cache: true})
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(resp.Body))) == 0 {
		return nil, errs.New(errs.ErrCodeNotFound, "empty molfile").WithDetail(id)
	}
	return resp.Body, nil
}
