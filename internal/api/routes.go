package api

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// ErrorHandler renders handler errors as {"error": message}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	if code >= fiber.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.Path()).Error("request failed")
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

type Options struct {
	DisableRegistration bool
	// Mailer may be nil, in which case no mail is sent.
	Mailer *Mailer
}

func SetupRoutes(app *fiber.App, db *sql.DB, opts Options) {
	api := app.Group("/api")

	api.Get("/config", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"disableRegistration": opts.DisableRegistration,
		})
	})

	authGroup := api.Group("/auth")
	if !opts.DisableRegistration {
		authGroup.Post("/register", RegisterHandler(db))
	}
	authGroup.Post("/login", LoginHandler(db))
	authGroup.Post("/refresh", RefreshTokenHandler(db))
	authGroup.Post("/logout", LogoutHandler(db))

	// Public reads; registered before the protected group so the auth
	// middleware does not intercept them.
	api.Get("/announcements", ListAnnouncementsHandler(db))
	api.Get("/categories", ListCategoriesHandler(db))

	protected := api.Group("/", AuthMiddleware())

	user := protected.Group("/user")
	user.Get("/profile", GetUserProfileHandler(db))
	user.Put("/email", UpdateUserEmailHandler(db))
	user.Post("/email/test", TestEmailHandler(db, opts.Mailer))

	events := protected.Group("/events")
	events.Get("/", ListEventsHandler(db))
	events.Post("/", CreateEventHandler(db))
	events.Get("/upcoming", UpcomingEventsHandler(db))
	events.Get("/calendar.ics", CalendarHandler(db))
	events.Put("/:id", UpdateEventHandler(db))
	events.Delete("/:id", DeleteEventHandler(db))

	protected.Post("/announcements", AdminMiddleware(), CreateAnnouncementHandler(db, opts.Mailer))
	protected.Post("/categories", AdminMiddleware(), CreateCategoryHandler(db))
	protected.Get("/analytics/events", AdminMiddleware(), AnalyticsHandler(db))

	admin := protected.Group("/admin", AdminMiddleware())
	admin.Get("/users", ListUsersHandler(db))
	admin.Put("/users/:username", UpdateUserRoleHandler(db))
	admin.Delete("/users/:username", DeleteUserHandler(db))
	admin.Post("/events/bulk", BulkEventsHandler(db))

	export := protected.Group("/export", AdminMiddleware())
	export.Get("/events/excel", ExportExcelHandler(db))
	export.Get("/events/pdf", ExportPDFHandler(db))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
}
