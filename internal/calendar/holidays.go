package calendar

// USMarketHolidays lists full-day NYSE/NASDAQ closures. It needs a yearly
// refresh; config can add dates through calendar.extra_holidays.
var USMarketHolidays = []string{
	// 2024
	"2024-01-01", // New Year's Day
	"2024-01-15", // Martin Luther King Jr. Day
	"2024-02-19", // Presidents Day
	"2024-03-29", // Good Friday
	"2024-05-27", // Memorial Day
	"2024-06-19", // Juneteenth
	"2024-07-04", // Independence Day
	"2024-09-02", // Labor Day
	"2024-11-28", // Thanksgiving Day
	"2024-12-25", // Christmas Day
	// 2025
	"2025-01-01",
	"2025-01-20",
	"2025-02-17",
	"2025-04-18",
	"2025-05-26",
	"2025-06-19",
	"2025-07-04",
	"2025-09-01",
	"2025-11-27",
	"2025-12-25",
	// 2026
	"2026-01-01",
	"2026-01-19",
	"2026-02-16",
	"2026-04-03",
	"2026-05-25",
	"2026-06-19",
	"2026-07-03", // Independence Day (observed)
	"2026-09-07",
	"2026-11-26",
	"2026-12-25",
}
