package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"aimarket/internal/services/catalog"
)

const maxUploadMemory = 32 << 20

// parseProductForm reads the publish form. Image files arrive as multipart
// parts under "images"; tags are comma-separated. The returned cleanup closes
// any opened file parts and must always be called.
func parseProductForm(r *http.Request) (catalog.CreateInput, []catalog.UploadFile, func(), error) {
	files, cleanup, err := parseForm(r)
	if err != nil {
		return catalog.CreateInput{}, nil, func() {}, err
	}
	in := catalog.CreateInput{
		Name:          strings.TrimSpace(r.PostFormValue("name")),
		Description:   r.PostFormValue("description"),
		APIName:       r.PostFormValue("api_name"),
		Category:      r.PostFormValue("category"),
		Tags:          splitTags(r.PostFormValue("tags")),
		APIDocs:       r.PostFormValue("api_docs"),
		APIKey:        r.PostFormValue("api_key"),
		AllowedOrigin: r.PostFormValue("allowed_origin"),
		Status:        r.PostFormValue("status"),
	}
	in.PricePer1K, _ = strconv.ParseFloat(r.PostFormValue("price_per_1k"), 64)
	in.UsageLimit, _ = strconv.ParseInt(r.PostFormValue("usage_limit"), 10, 64)
	in.TokenCount, _ = strconv.ParseInt(r.PostFormValue("token_count"), 10, 64)
	if v := r.PostFormValue("stock"); v != "" {
		if n, perr := strconv.ParseInt(v, 10, 64); perr == nil {
			in.Stock = &n
		}
	}
	return in, files, cleanup, nil
}

// parseProductPatch reads a partial form: only keys present in the request
// become non-nil fields of the patch.
func parseProductPatch(r *http.Request) (catalog.UpdateInput, []catalog.UploadFile, func(), error) {
	files, cleanup, err := parseForm(r)
	if err != nil {
		return catalog.UpdateInput{}, nil, func() {}, err
	}
	var in catalog.UpdateInput
	in.Name = formString(r, "name")
	in.Description = formString(r, "description")
	in.APIName = formString(r, "api_name")
	in.Category = formString(r, "category")
	in.APIDocs = formString(r, "api_docs")
	in.APIKey = formString(r, "api_key")
	in.AllowedOrigin = formString(r, "allowed_origin")
	in.Status = formString(r, "status")
	if v := formString(r, "tags"); v != nil {
		tags := splitTags(*v)
		in.Tags = &tags
	}
	if v := formString(r, "price_per_1k"); v != nil {
		if f, perr := strconv.ParseFloat(*v, 64); perr == nil {
			in.PricePer1K = &f
		}
	}
	if v := formString(r, "usage_limit"); v != nil {
		if n, perr := strconv.ParseInt(*v, 10, 64); perr == nil {
			in.UsageLimit = &n
		}
	}
	if v := formString(r, "token_count"); v != nil {
		if n, perr := strconv.ParseInt(*v, 10, 64); perr == nil {
			in.TokenCount = &n
		}
	}
	if v := formString(r, "stock"); v != nil {
		if n, perr := strconv.ParseInt(*v, 10, 64); perr == nil {
			in.Stock = &n
		}
	}
	return in, files, cleanup, nil
}

func parseForm(r *http.Request) ([]catalog.UploadFile, func(), error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			return nil, func() {}, err
		}
		return openFiles(r)
	}
	if err := r.ParseForm(); err != nil {
		return nil, func() {}, err
	}
	return nil, func() {}, nil
}

func openFiles(r *http.Request) ([]catalog.UploadFile, func(), error) {
	var closers []io.Closer
	cleanup := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}
	var files []catalog.UploadFile
	for _, fh := range r.MultipartForm.File["images"] {
		f, err := fh.Open()
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		closers = append(closers, f)
		files = append(files, catalog.UploadFile{Name: fh.Filename, Reader: f, Size: fh.Size})
	}
	return files, cleanup, nil
}

func formString(r *http.Request, key string) *string {
	vs, ok := r.PostForm[key]
	if !ok || len(vs) == 0 {
		return nil
	}
	return &vs[0]
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
