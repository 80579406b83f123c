package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/certification-backend/internal/data/repos"
	domainagg "github.com/yungbote/certification-backend/internal/domain/aggregates"
	"github.com/yungbote/certification-backend/internal/http/response"
	"github.com/yungbote/certification-backend/internal/platform/apierr"
	"github.com/yungbote/certification-backend/internal/services"
)

func invalid(msg string) error {
	return apierr.New(http.StatusBadRequest, string(domainagg.CodeInvalidInput), errors.New(msg))
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil || id == uuid.Nil {
		response.Error(c, invalid(fmt.Sprintf("%s must be a UUID", name)))
		return uuid.Nil, false
	}
	return id, true
}

func pageQuery(c *gin.Context) (repos.Page, bool) {
	var p repos.Page
	for name, dst := range map[string]*int{"limit": &p.Limit, "offset": &p.Offset} {
		raw := strings.TrimSpace(c.Query(name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.Error(c, invalid(name+" must be a non-negative integer"))
			return repos.Page{}, false
		}
		*dst = n
	}
	return p.Normalize(), true
}

// ifMatch reads an optional If-Match version. Quotes and a weak prefix are
// tolerated; "*" means any version.
func ifMatch(c *gin.Context) (*int, bool) {
	raw := strings.TrimSpace(c.GetHeader("If-Match"))
	if raw == "" || raw == "*" {
		return nil, true
	}
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		response.Error(c, invalid("If-Match must carry the request version, e.g. \"3\""))
		return nil, false
	}
	return &v, true
}

// multipartUploads pairs files[] with kinds[] by position.
func multipartUploads(form *multipart.Form) []services.Upload {
	if form == nil {
		return nil
	}
	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["files[]"]
	}
	kinds := form.Value["kinds"]
	if len(kinds) == 0 {
		kinds = form.Value["kinds[]"]
	}
	out := make([]services.Upload, 0, len(files))
	for i, fh := range files {
		fh := fh
		kind := ""
		if i < len(kinds) {
			kind = kinds[i]
		}
		out = append(out, services.Upload{
			Kind:         kind,
			OriginalName: fh.Filename,
			DeclaredSize: fh.Size,
			Open: func() (io.ReadCloser, error) {
				f, err := fh.Open()
				if err != nil {
					return nil, err
				}
				return f, nil
			},
		})
	}
	return out
}

func formValue(form *multipart.Form, key string) string {
	if form == nil {
		return ""
	}
	if vs := form.Value[key]; len(vs) > 0 {
		return strings.TrimSpace(vs[0])
	}
	return ""
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/")
}
