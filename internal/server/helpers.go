package server

import (
	"errors"
	"io"
	"strings"
	"unicode"

	"localpulse/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten tells a handler that a helper already wrote the
// response. Handlers return nil on it so the error handler leaves the body.
var errResponseWritten = errors.New("response already written")

const maxPaginationLimit = 100

// Pagination is a limit/offset window read from the query string.
type Pagination struct {
	Limit  int
	Offset int
}

func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	p := Pagination{
		Limit:  c.QueryInt("limit", defaultLimit),
		Offset: c.QueryInt("offset", 0),
	}
	switch {
	case p.Limit <= 0:
		p.Limit = defaultLimit
	case p.Limit > maxPaginationLimit:
		p.Limit = maxPaginationLimit
	}
	p.Offset = max(p.Offset, 0)
	return p
}

// parseID reads a positive numeric route parameter, answering 400 otherwise.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		return 0, badParam(c, param)
	}
	return uint(id), nil
}

// parseKey reads a string route parameter such as a draft or notification id.
func parseKey(c *fiber.Ctx, param string) (string, error) {
	key := strings.TrimSpace(c.Params(param))
	if key == "" || len(key) > 64 {
		return "", badParam(c, param)
	}
	return key, nil
}

func badParam(c *fiber.Ctx, param string) error {
	_ = models.RespondWithError(c, fiber.StatusBadRequest,
		models.NewValidationError("Invalid "+humanizeParam(param)))
	return errResponseWritten
}

// humanizeParam turns a route parameter name into an error label:
// "id" is "ID" and "draftId" is "draft ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	stem, ok := strings.CutSuffix(param, "Id")
	if !ok {
		return param
	}
	var b strings.Builder
	for i, r := range stem {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String() + " ID"
}

// respond writes err with the status its code maps to.
func respond(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	if status == fiber.StatusInternalServerError && models.ErrorCode(err) == "" {
		err = models.NewInternalError(err)
	}
	return models.RespondWithError(c, status, err)
}

// bindJSON parses the request body into dst and writes a 400 on failure.
func bindJSON(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}

// formFile reads an optional multipart file field. A missing field is nil.
func formFile(c *fiber.Ctx, field string) ([]byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		// Not multipart, or the field was left out.
		return nil, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

// geographyQuery reads state/district/block query parameters.
func geographyQuery(c *fiber.Ctx) models.Geography {
	return models.Geography{
		State:    c.Query("state"),
		District: c.Query("district"),
		Block:    c.Query("block"),
	}.Normalize()
}
