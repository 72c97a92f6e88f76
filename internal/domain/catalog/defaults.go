package catalog

import "github.com/carboniq/carboniq-rewards/internal/domain/report"

// Badge identifiers of the default catalog.
const (
	BadgeFirstReport      BadgeID = "first_report"
	BadgeWeeklyReporter   BadgeID = "weekly_reporter"
	BadgeMonthlyReporter  BadgeID = "monthly_reporter"
	BadgeEcoWarrior       BadgeID = "eco_warrior"
	BadgePhotoMaster      BadgeID = "photo_master"
	BadgeDetailOriented   BadgeID = "detail_oriented"
	BadgeSafetyFirst      BadgeID = "safety_first"
	BadgeUrbanGuardian    BadgeID = "urban_guardian"
	BadgeRuralProtector   BadgeID = "rural_protector"
	BadgeWasteCategorizer BadgeID = "waste_categorizer"
	BadgeStreakMaster     BadgeID = "streak_master"
	BadgeEarlyAdopter     BadgeID = "early_adopter"
	BadgeCommunityLeader  BadgeID = "community_leader"
)

// DefaultRules returns the stock point rules.
func DefaultRules() []Rule {
	return []Rule{
		{Action: ActionReportCreated, Points: 10, Description: "Base points for creating a waste report"},
		{Action: ActionReportWithImage, Points: 5, Description: "Bonus points for including an image"},
		{Action: ActionReportDetailed, Points: 3, Description: "Bonus for complete report with measurements and feedback"},
		{Action: ActionDailyStreak, Points: 2, Description: "Daily streak bonus (per consecutive day)"},
		{Action: ActionWeeklyGoal, Points: 25, Description: "Weekly goal achievement (5+ reports)"},
		{Action: ActionMonthlyGoal, Points: 100, Description: "Monthly goal achievement (20+ reports)"},
		{Action: ActionBadgeEarned, Points: 50, Description: "Bonus points for earning a new badge"},
	}
}

// DefaultGoals returns the stock weekly and monthly goals.
func DefaultGoals() []GoalRule {
	return []GoalRule{
		{Action: ActionWeeklyGoal, Window: WindowWeek, Threshold: 5},
		{Action: ActionMonthlyGoal, Window: WindowMonth, Threshold: 20},
	}
}

// DefaultBadges returns the stock badge set.
func DefaultBadges() []Badge {
	return []Badge{
		{BadgeFirstReport, "First Steps", "Create your first waste report", TotalReports(1)},
		{BadgeWeeklyReporter, "Weekly Warrior", "Create 5 reports in a week", WindowedCount(WindowWeek, report.PredicateAny, 5)},
		{BadgeMonthlyReporter, "Monthly Champion", "Create 20 reports in a month", WindowedCount(WindowMonth, report.PredicateAny, 20)},
		{BadgeEcoWarrior, "Eco Warrior", "Create 100+ waste reports", TotalReports(100)},
		{BadgePhotoMaster, "Photo Master", "Include images in 25 reports", ImagesCount(25)},
		{BadgeDetailOriented, "Detail Oriented", "Submit 10 detailed reports with measurements", WindowedCount(WindowAll, report.PredicateDetailed, 10)},
		{BadgeSafetyFirst, "Safety First", "Report 50 waste sites marked as safe", WindowedCount(WindowAll, report.PredicateSafe, 50)},
		{BadgeUrbanGuardian, "Urban Guardian", "Report 30 urban waste sites", WindowedCount(WindowAll, report.PredicateUrban, 30)},
		{BadgeRuralProtector, "Rural Protector", "Report 20 rural waste sites", WindowedCount(WindowAll, report.PredicateRural, 20)},
		{BadgeWasteCategorizer, "Waste Categorizer", "Report all 7 waste types", DistinctWasteTypes(7)},
		{BadgeStreakMaster, "Streak Master", "Maintain a 7-day reporting streak", StreakDays(7)},
		{BadgeEarlyAdopter, "Early Adopter", "Be among the first 100 users", JoinOrder(100)},
		{BadgeCommunityLeader, "Community Leader", "Have the most reports in your institution", InstitutionLeader(1)},
	}
}

// Default returns the stock catalog.
func Default() *Catalog {
	return MustNew(DefaultRules(), DefaultGoals(), DefaultBadges(), DefaultLevelThresholds)
}
