package model

import (
	"encoding/json"
	"fmt"
)

// PageData is the typed content of a page fetch response.
type PageData struct {
	// HTML is the rendered page markup.
	HTML string

	// Files are the page attachments. Empty when the response omits them.
	Files []File
}

// pageResponse mirrors the wire shape {"data":{"html":...,"files":[...]}}.
// Pointers distinguish absent fields from empty ones.
type pageResponse struct {
	Data *struct {
		HTML  *string `json:"html"`
		Files []File  `json:"files"`
	} `json:"data"`
}

// DecodePageData parses a page fetch response body.
// It returns an error wrapping ErrMalformedResponse when the body is not
// JSON, or when the data object or its html field is missing.
func DecodePageData(body []byte) (*PageData, error) {
	var resp pageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("%w: missing data object", ErrMalformedResponse)
	}
	if resp.Data.HTML == nil {
		return nil, fmt.Errorf("%w: missing data.html", ErrMalformedResponse)
	}

	files := make([]File, 0, len(resp.Data.Files))
	for _, f := range resp.Data.Files {
		files = append(files, File{URL: f.URL, Name: f.Name})
	}

	return &PageData{
		HTML:  *resp.Data.HTML,
		Files: files,
	}, nil
}
