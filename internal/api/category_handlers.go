package api

import (
	"database/sql"
	"regexp"
	"strings"

	"evently/internal/models"

	"github.com/gofiber/fiber/v2"
)

const defaultCategoryColor = "#007bff"

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func ListCategoriesHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rows, err := db.Query("SELECT id, name, color FROM categories ORDER BY name")
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch categories")
		}
		defer rows.Close()

		out := make([]models.Category, 0)
		for rows.Next() {
			var cat models.Category
			if err := rows.Scan(&cat.ID, &cat.Name, &cat.Color); err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch categories")
			}
			out = append(out, cat)
		}
		return c.JSON(out)
	}
}

func CreateCategoryHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.CategoryRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Name is required")
		}
		if req.Color == "" {
			req.Color = defaultCategoryColor
		}
		if !colorPattern.MatchString(req.Color) {
			return fiber.NewError(fiber.StatusBadRequest, "Color must be a hex value like #007bff")
		}

		res, err := db.Exec("INSERT INTO categories (name, color) VALUES (?, ?)", req.Name, req.Color)
		if err != nil {
			return fiber.NewError(fiber.StatusConflict, "Category already exists")
		}
		id, _ := res.LastInsertId()
		return c.Status(fiber.StatusCreated).JSON(models.Category{ID: id, Name: req.Name, Color: req.Color})
	}
}
