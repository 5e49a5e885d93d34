package api

import (
	"context"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/phuslu/log"

	"docchat/internal/errs"
	"docchat/internal/model"
)

// Pipeline is the slice of the RAG service the handlers need.
type Pipeline interface {
	Ingest(ctx context.Context, data []byte, filename string) (*model.IngestResult, error)
	Ask(ctx context.Context, prompt string) (string, error)
}

// Handler holds handler dependencies.
type Handler struct {
	rag Pipeline
}

func NewHandler(rag Pipeline) *Handler {
	return &Handler{rag: rag}
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.SendString("ok")
}

// Ingest accepts a multipart upload (field "file") and stores its
// embedded chunks.
func (h *Handler) Ingest(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fail(c, errs.New(errs.KindValidation, "file is required (form field: file)"))
	}

	f, err := fh.Open()
	if err != nil {
		return fail(c, errs.Wrap(errs.KindValidation, "failed to open upload", err))
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fail(c, errs.Wrap(errs.KindValidation, "failed to read upload", err))
	}

	res, err := h.rag.Ingest(c.Context(), data, fh.Filename)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"status":       "ok",
		"doc":          res.Filename,
		"chunks_saved": len(res.ChunkIDs),
	})
}

// Ask answers a question from the ingested documents.
func (h *Handler) Ask(c *fiber.Ctx) error {
	var req model.AskRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, errs.Wrap(errs.KindValidation, "invalid request, expected JSON: {\"prompt\":\"...\"}", err))
	}

	answer, err := h.rag.Ask(c.Context(), req.Prompt)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(model.AskResponse{Text: answer})
}

// fail maps a classified error onto the response contract:
// {"error": kind, "message": ...} with the matching status class.
func fail(c *fiber.Ctx, err error) error {
	status := errs.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(status).JSON(fiber.Map{
		"error":   errs.KindOf(err).String(),
		"message": errs.Message(err),
	})
}
