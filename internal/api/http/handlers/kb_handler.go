package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-triage/internal/api/dto"
	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/service"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

// KBHandler manages knowledge base articles.
type KBHandler struct {
	service *service.KBService
}

// NewKBHandler constructs handler.
func NewKBHandler(kb *service.KBService) *KBHandler {
	return &KBHandler{service: kb}
}

// List GET /kb?status=&query=&limit=.
func (h *KBHandler) List(c *fiber.Ctx) error {
	articles, err := h.service.List(c.UserContext(), service.ArticleListInput{
		Status: c.Query("status"),
		Query:  c.Query("query"),
		Limit:  c.QueryInt("limit", 0),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": articleList(articles)})
}

// Get GET /kb/:id.
func (h *KBHandler) Get(c *fiber.Ctx) error {
	article, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewArticle(article)})
}

// Create POST /kb.
func (h *KBHandler) Create(c *fiber.Ctx) error {
	var req dto.ArticleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	article, err := h.service.Create(c.UserContext(), service.ArticleInput{
		Title:  req.Title,
		Body:   req.Body,
		Tags:   req.Tags,
		Status: req.Status,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewArticle(article)})
}

// Update PUT /kb/:id.
func (h *KBHandler) Update(c *fiber.Ctx) error {
	var req dto.ArticlePatchRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	article, err := h.service.Update(c.UserContext(), c.Params("id"), service.ArticlePatch{
		Title:  req.Title,
		Body:   req.Body,
		Tags:   req.Tags,
		Status: req.Status,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewArticle(article)})
}

// Delete DELETE /kb/:id.
func (h *KBHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func articleList(articles []domain.Article) []dto.ArticleResponse {
	items := make([]dto.ArticleResponse, 0, len(articles))
	for i := range articles {
		items = append(items, dto.NewArticle(&articles[i]))
	}
	return items
}
