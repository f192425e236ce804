package api

import (
	"database/sql"

	"evently/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

var periodFormats = map[string]string{
	"daily":   "%Y-%m-%d",
	"weekly":  "%Y-%W",
	"monthly": "%Y-%m",
	"yearly":  "%Y",
}

func AnalyticsHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		format, ok := periodFormats[c.Query("range", "monthly")]
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid time range")
		}
		a, err := BuildAnalytics(db, format)
		if err != nil {
			logrus.WithError(err).Error("analytics query failed")
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to compute analytics")
		}
		return c.JSON(a)
	}
}

// BuildAnalytics aggregates events by the strftime period format.
func BuildAnalytics(db *sql.DB, format string) (*models.Analytics, error) {
	a := &models.Analytics{
		EventsByTime:  []models.PeriodCount{},
		TopUsers:      []models.UserCount{},
		CategoryStats: []models.CategoryCount{},
		LocationStats: []models.LocationCount{},
	}

	err := collect(db, `SELECT strftime(?, date) AS period, COUNT(*) FROM events GROUP BY period ORDER BY period`,
		[]any{format}, func(rows *sql.Rows) error {
			var p models.PeriodCount
			if err := rows.Scan(&p.Period, &p.Count); err != nil {
				return err
			}
			a.EventsByTime = append(a.EventsByTime, p)
			a.TotalEvents += p.Count
			return nil
		})
	if err != nil {
		return nil, err
	}

	err = collect(db, `SELECT u.username, COUNT(*) AS n FROM events e JOIN users u ON u.id = e.user_id
		GROUP BY u.username ORDER BY n DESC, u.username LIMIT 5`, nil, func(rows *sql.Rows) error {
		var u models.UserCount
		if err := rows.Scan(&u.Username, &u.Events); err != nil {
			return err
		}
		a.TopUsers = append(a.TopUsers, u)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = collect(db, `SELECT c.name, COUNT(ec.event_id) AS n FROM categories c
		LEFT JOIN event_categories ec ON ec.category_id = c.id
		GROUP BY c.name ORDER BY n DESC, c.name`, nil, func(rows *sql.Rows) error {
		var cc models.CategoryCount
		if err := rows.Scan(&cc.Name, &cc.Count); err != nil {
			return err
		}
		a.CategoryStats = append(a.CategoryStats, cc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = collect(db, `SELECT location, COUNT(*) AS n FROM events
		GROUP BY location ORDER BY n DESC, location LIMIT 5`, nil, func(rows *sql.Rows) error {
		var l models.LocationCount
		if err := rows.Scan(&l.Location, &l.Count); err != nil {
			return err
		}
		a.LocationStats = append(a.LocationStats, l)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&a.TotalUsers); err != nil {
		return nil, err
	}
	a.TotalCategories = len(a.CategoryStats)
	return a, nil
}

func collect(db *sql.DB, query string, args []any, scan func(*sql.Rows) error) error {
	rows, err := db.Query(query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
