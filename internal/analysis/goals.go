package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/money"
	"github.com/dvloznov/finance-agent/internal/state"
)

// Well-known goal ids addressed by keyword.
const (
	GoalEmergencyFund    = "emergency_fund"
	GoalVacationFund     = "vacation_fund"
	GoalHouseDownPayment = "house_down_payment"
	GoalRetirement401k   = "retirement_401k"
	GoalCarReplacement   = "car_replacement"
)

var goalBranches = []branch{
	{GoalEmergencyFund, []string{"emergency"}},
	{GoalVacationFund, []string{"vacation", "travel", "trip"}},
	{GoalHouseDownPayment, []string{"house", "home", "down payment"}},
	{GoalRetirement401k, []string{"retirement", "401k"}},
	{GoalCarReplacement, []string{"car", "vehicle"}},
	{"progress", []string{"progress", "how close", "track"}},
	{"timeline", []string{"behind", "on track", "ahead"}},
}

var milestones = []float64{25, 50, 75, 90, 100}

// GoalDetails echoes the goal definition.
type GoalDetails struct {
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	TargetAmount  float64 `json:"target_amount"`
	CurrentAmount float64 `json:"current_amount"`
	Deadline      string  `json:"deadline"`
	Priority      string  `json:"priority"`
	Category      string  `json:"category"`
}

// GoalProgress is progress toward one goal.
type GoalProgress struct {
	ProgressPercentage float64  `json:"progress_percentage"`
	AmountRemaining    float64  `json:"amount_remaining"`
	DaysRemaining      *int     `json:"days_remaining"`
	MonthsRemaining    *float64 `json:"months_remaining"`
}

// GoalProjection extrapolates current contributions to the deadline.
type GoalProjection struct {
	MonthlyContribution     float64 `json:"monthly_contribution"`
	ProjectedFinalAmount    float64 `json:"projected_final_amount"`
	OnTrack                 bool    `json:"on_track"`
	Shortfall               float64 `json:"shortfall"`
	AdditionalMonthlyNeeded float64 `json:"additional_monthly_needed"`
}

// Milestones reports which 25/50/75/90/100% marks were reached.
type Milestones struct {
	Completed             []float64 `json:"completed_milestones"`
	Next                  *float64  `json:"next_milestone"`
	AmountToNextMilestone float64   `json:"amount_to_next_milestone"`
}

// GoalAnalysis is the report for a single goal.
type GoalAnalysis struct {
	Type            string         `json:"analysis_type"`
	Goal            GoalDetails    `json:"goal_details"`
	Progress        GoalProgress   `json:"progress_analysis"`
	Projection      GoalProjection `json:"projection"`
	Recommendations []string       `json:"recommendations"`
	Milestones      Milestones     `json:"milestone_progress"`
}

// GoalStatusLine is one goal in the overall progress report.
type GoalStatusLine struct {
	GoalID             string  `json:"goal_id"`
	Name               string  `json:"name"`
	ProgressPercentage float64 `json:"progress_percentage"`
	CurrentAmount      float64 `json:"current_amount"`
	TargetAmount       float64 `json:"target_amount"`
	Priority           string  `json:"priority"`
	Status             string  `json:"status"`
}

// GoalCategory aggregates goals sharing a category.
type GoalCategory struct {
	Category           string  `json:"category"`
	Count              int     `json:"count"`
	TotalTarget        float64 `json:"total_target"`
	TotalCurrent       float64 `json:"total_current"`
	ProgressPercentage float64 `json:"progress_percentage"`
}

// OverallGoalSummary totals every goal.
type OverallGoalSummary struct {
	TotalGoals                int     `json:"total_goals"`
	TotalTargetAmount         float64 `json:"total_target_amount"`
	TotalCurrentAmount        float64 `json:"total_current_amount"`
	OverallProgressPercentage float64 `json:"overall_progress_percentage"`
	TotalMonthlyContributions float64 `json:"total_monthly_contributions"`
	AmountRemaining           float64 `json:"amount_remaining"`
}

// GoalsProgress is the progress report across all goals.
type GoalsProgress struct {
	Type              string             `json:"analysis_type"`
	Summary           OverallGoalSummary `json:"overall_summary"`
	Individual        []GoalStatusLine   `json:"individual_progress"`
	Categories        []GoalCategory     `json:"category_breakdown"`
	LeadingGoal       *GoalStatusLine    `json:"leading_goal"`
	LaggingGoal       *GoalStatusLine    `json:"lagging_goal"`
	HighPriorityGoals []GoalStatusLine   `json:"high_priority_goals"`
}

// GoalTimeline compares a goal's contribution with what its deadline requires.
type GoalTimeline struct {
	GoalName        string  `json:"goal_name"`
	GoalID          string  `json:"goal_id"`
	Deadline        string  `json:"deadline"`
	DaysRemaining   int     `json:"days_remaining"`
	MonthsRemaining float64 `json:"months_remaining"`
	CurrentMonthly  float64 `json:"current_monthly"`
	RequiredMonthly float64 `json:"required_monthly"`
	Status          string  `json:"status"`
	Priority        string  `json:"priority"`
	ShortfallRisk   float64 `json:"shortfall_risk"`
}

// TimelineSummary counts goals by timeline status.
type TimelineSummary struct {
	TotalGoalsWithDeadlines int `json:"total_goals_with_deadlines"`
	GoalsOnTrack            int `json:"goals_on_track"`
	GoalsBehindSchedule     int `json:"goals_behind_schedule"`
	GoalsSlightlyBehind     int `json:"goals_slightly_behind"`
}

// GoalsTimeline is the deadline report, most urgent first.
type GoalsTimeline struct {
	Type            string          `json:"analysis_type"`
	Summary         TimelineSummary `json:"timeline_summary"`
	Timelines       []GoalTimeline  `json:"goal_timelines"`
	MostUrgent      *GoalTimeline   `json:"most_urgent"`
	HighestRisk     *GoalTimeline   `json:"highest_risk"`
	Recommendations []string        `json:"recommendations"`
}

// GoalListItem is a compact goal line.
type GoalListItem struct {
	Name     string  `json:"name"`
	Target   float64 `json:"target"`
	Current  float64 `json:"current"`
	Progress float64 `json:"progress"`
	Priority string  `json:"priority"`
	Deadline string  `json:"deadline"`
}

// GoalsOverview totals the active goals.
type GoalsOverview struct {
	TotalActiveGoals  int     `json:"total_active_goals"`
	TotalTargetAmount float64 `json:"total_target_amount"`
	TotalSaved        float64 `json:"total_saved"`
	OverallProgress   float64 `json:"overall_progress"`
	AmountRemaining   float64 `json:"amount_remaining"`
}

// GoalsSummary is the fallback overview of active goals.
type GoalsSummary struct {
	Type              string         `json:"analysis_type"`
	Overview          GoalsOverview  `json:"goals_overview"`
	PriorityBreakdown map[string]int `json:"priority_breakdown"`
	CategoryBreakdown map[string]int `json:"category_breakdown"`
	Goals             []GoalListItem `json:"goal_list"`
}

// GoalModule tracks progress toward savings goals.
type GoalModule struct {
	clock func() time.Time
}

// NewGoalModule creates the goal_tracker module.
func NewGoalModule(opts Options) *GoalModule {
	return &GoalModule{clock: opts.withDefaults().Clock}
}

func (m *GoalModule) Name() string { return GoalTracker }

func (m *GoalModule) Description() string {
	return "Progress, projections and timelines for financial goals"
}

func (m *GoalModule) Run(_ context.Context, st *state.State) error {
	snap := st.Snapshot()
	if !snap.HasGoals() {
		missing(st, m.Name(), "No financial goals data available")
		return nil
	}

	now := m.clock()
	goals := snap.Goals

	var result any
	switch b := selectBranch(st.UserQuery, goalBranches, "summary"); b {
	case "progress":
		result = goalsProgress(goals, now)
	case "timeline":
		result = goalsTimeline(goals, now)
	case "summary":
		result = goalsSummary(goals)
	default:
		g, ok := findGoal(goals, b)
		if !ok {
			missing(st, m.Name(), fmt.Sprintf("Goal with ID '%s' not found", b))
			return nil
		}
		result = AnalyzeGoal(g, now)
	}
	store(st, m.Name(), result)
	return nil
}

func findGoal(goals []domain.Goal, id string) (domain.Goal, bool) {
	for _, g := range goals {
		if g.ID == id {
			return g, true
		}
	}
	return domain.Goal{}, false
}

// daysUntil counts whole days from now until t, flooring like a calendar diff.
func daysUntil(t, now time.Time) int {
	return int(math.Floor(t.Sub(now).Hours() / 24))
}

// AnalyzeGoal reports progress, projection and milestones for one goal as of now.
func AnalyzeGoal(g domain.Goal, now time.Time) GoalAnalysis {
	remaining := g.Remaining()
	progress := GoalProgress{
		ProgressPercentage: money.Round1(g.ProgressPercentage()),
		AmountRemaining:    money.Round2(remaining),
	}

	var months float64
	if deadline, ok := g.DeadlineTime(); ok {
		days := daysUntil(deadline, now)
		months = float64(days) / 30
		progress.DaysRemaining = &days
		if days != 0 {
			m := money.Round1(months)
			progress.MonthsRemaining = &m
		}
	}

	proj := GoalProjection{
		MonthlyContribution:  g.MonthlyContribution,
		ProjectedFinalAmount: money.Round2(g.CurrentAmount),
		Shortfall:            money.Round2(remaining),
	}
	if g.MonthlyContribution > 0 && months != 0 {
		projected := g.CurrentAmount + g.MonthlyContribution*months
		shortfall := max(0, g.TargetAmount-projected)
		proj.ProjectedFinalAmount = money.Round2(projected)
		proj.OnTrack = projected >= g.TargetAmount
		proj.Shortfall = money.Round2(shortfall)
		if months > 0 {
			proj.AdditionalMonthlyNeeded = money.Round2(shortfall / months)
		}
	}

	return GoalAnalysis{
		Type: "specific_goal",
		Goal: GoalDetails{
			Name:          g.Name,
			Description:   g.Description,
			TargetAmount:  g.TargetAmount,
			CurrentAmount: g.CurrentAmount,
			Deadline:      g.Deadline,
			Priority:      g.Priority,
			Category:      g.Category,
		},
		Progress:        progress,
		Projection:      proj,
		Recommendations: goalRecommendations(g, proj.OnTrack, proj.AdditionalMonthlyNeeded),
		Milestones:      milestoneProgress(g),
	}
}

func milestoneProgress(g domain.Goal) Milestones {
	pct := g.ProgressPercentage()
	res := Milestones{Completed: []float64{}}
	for _, m := range milestones {
		if pct >= m {
			res.Completed = append(res.Completed, m)
			continue
		}
		if res.Next == nil {
			next := m
			res.Next = &next
			res.AmountToNextMilestone = money.Round2(g.TargetAmount*m/100 - g.CurrentAmount)
		}
	}
	return res
}

func goalRecommendations(g domain.Goal, onTrack bool, additional float64) []string {
	var recs []string
	switch {
	case onTrack:
		recs = append(recs, "Great job! You're on track to reach your goal.")
	case additional > 0:
		recs = append(recs, fmt.Sprintf("To stay on track, consider increasing your monthly contribution by %s", money.Format(additional)))
	}
	if g.Priority == "high" {
		recs = append(recs, "This is a high-priority goal. Consider reallocating funds from lower-priority goals if needed.")
	}
	switch g.ID {
	case GoalEmergencyFund:
		recs = append(recs, "Emergency funds should be easily accessible. Consider a high-yield savings account.")
	case GoalRetirement401k:
		recs = append(recs, "Don't forget to take advantage of any employer matching contributions.")
	}
	return recs
}

// GoalStatus labels a goal from its progress and, when set, its deadline.
func GoalStatus(g domain.Goal, now time.Time) string {
	progress := g.ProgressPercentage()
	if deadline, ok := g.DeadlineTime(); ok {
		switch {
		case progress >= 100:
			return "Completed"
		case daysUntil(deadline, now) < 0:
			return "Overdue"
		case progress >= 75:
			return "On Track"
		case progress >= 50:
			return "Progressing"
		default:
			return "Behind"
		}
	}
	switch {
	case progress >= 100:
		return "Completed"
	case progress >= 75:
		return "Good Progress"
	case progress >= 25:
		return "Some Progress"
	default:
		return "Just Started"
	}
}

func goalsProgress(goals []domain.Goal, now time.Time) GoalsProgress {
	var target, current, monthly float64
	lines := make([]GoalStatusLine, 0, len(goals))
	cats := make(map[string]*GoalCategory)
	for _, g := range goals {
		target += g.TargetAmount
		current += g.CurrentAmount
		monthly += g.MonthlyContribution
		lines = append(lines, GoalStatusLine{
			GoalID:             g.ID,
			Name:               g.Name,
			ProgressPercentage: money.Round1(g.ProgressPercentage()),
			CurrentAmount:      g.CurrentAmount,
			TargetAmount:       g.TargetAmount,
			Priority:           g.Priority,
			Status:             GoalStatus(g, now),
		})

		name := g.Category
		if name == "" {
			name = "other"
		}
		c, ok := cats[name]
		if !ok {
			c = &GoalCategory{Category: name}
			cats[name] = c
		}
		c.Count++
		c.TotalTarget += g.TargetAmount
		c.TotalCurrent += g.CurrentAmount
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].ProgressPercentage > lines[j].ProgressPercentage })

	categories := make([]GoalCategory, 0, len(cats))
	for _, c := range cats {
		c.ProgressPercentage = money.Round1(money.Percent(c.TotalCurrent, c.TotalTarget))
		c.TotalTarget = money.Round2(c.TotalTarget)
		c.TotalCurrent = money.Round2(c.TotalCurrent)
		categories = append(categories, *c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Category < categories[j].Category })

	res := GoalsProgress{
		Type: "overall_progress",
		Summary: OverallGoalSummary{
			TotalGoals:                len(goals),
			TotalTargetAmount:         money.Round2(target),
			TotalCurrentAmount:        money.Round2(current),
			OverallProgressPercentage: money.Round1(money.Percent(current, target)),
			TotalMonthlyContributions: money.Round2(monthly),
			AmountRemaining:           money.Round2(target - current),
		},
		Individual:        lines,
		Categories:        categories,
		HighPriorityGoals: []GoalStatusLine{},
	}
	for _, l := range lines {
		if l.Priority == "high" {
			res.HighPriorityGoals = append(res.HighPriorityGoals, l)
		}
	}
	if len(lines) > 0 {
		lead, lag := lines[0], lines[len(lines)-1]
		res.LeadingGoal, res.LaggingGoal = &lead, &lag
	}
	return res
}

func goalsTimeline(goals []domain.Goal, now time.Time) GoalsTimeline {
	var timelines []GoalTimeline
	for _, g := range goals {
		deadline, ok := g.DeadlineTime()
		if !ok {
			continue
		}
		days := daysUntil(deadline, now)
		months := max(1, float64(days)/30)
		required := g.Remaining() / months

		status := "Behind Schedule"
		switch {
		case g.MonthlyContribution >= required:
			status = "On Track"
		case g.MonthlyContribution >= required*0.8:
			status = "Slightly Behind"
		}

		timelines = append(timelines, GoalTimeline{
			GoalName:        g.Name,
			GoalID:          g.ID,
			Deadline:        g.Deadline,
			DaysRemaining:   days,
			MonthsRemaining: money.Round1(months),
			CurrentMonthly:  g.MonthlyContribution,
			RequiredMonthly: money.Round2(required),
			Status:          status,
			Priority:        g.Priority,
			ShortfallRisk:   money.Round2(max(0, required-g.MonthlyContribution)),
		})
	}
	sort.SliceStable(timelines, func(i, j int) bool { return timelines[i].DaysRemaining < timelines[j].DaysRemaining })

	var summary TimelineSummary
	summary.TotalGoalsWithDeadlines = len(timelines)
	behind, urgent := 0, 0
	for _, t := range timelines {
		switch t.Status {
		case "On Track":
			summary.GoalsOnTrack++
		case "Behind Schedule":
			summary.GoalsBehindSchedule++
			behind++
		default:
			summary.GoalsSlightlyBehind++
		}
		if t.DaysRemaining < 90 {
			urgent++
		}
	}

	res := GoalsTimeline{
		Type:      "timeline",
		Summary:   summary,
		Timelines: timelines,
	}
	if len(timelines) > 0 {
		urgentGoal := timelines[0]
		res.MostUrgent = &urgentGoal
		risk := timelines[0]
		for _, t := range timelines[1:] {
			if t.ShortfallRisk > risk.ShortfallRisk {
				risk = t
			}
		}
		res.HighestRisk = &risk
	}

	if behind > 0 {
		res.Recommendations = append(res.Recommendations,
			fmt.Sprintf("You have %d goals behind schedule. Consider increasing contributions or adjusting deadlines.", behind))
	}
	if urgent > 0 {
		res.Recommendations = append(res.Recommendations,
			fmt.Sprintf("%d goals have deadlines within 90 days. Focus on these high-priority items.", urgent))
	}
	if behind == 0 && urgent == 0 {
		res.Recommendations = append(res.Recommendations,
			"Your goal timelines look manageable. Keep up the consistent contributions!")
	}
	return res
}

func goalsSummary(goals []domain.Goal) GoalsSummary {
	res := GoalsSummary{
		Type:              "summary",
		PriorityBreakdown: map[string]int{"high": 0, "medium": 0, "low": 0},
		CategoryBreakdown: map[string]int{},
		Goals:             []GoalListItem{},
	}

	var target, saved float64
	for _, g := range goals {
		if !g.IsActive() {
			continue
		}
		priority := g.Priority
		if priority == "" {
			priority = "medium"
		}
		res.PriorityBreakdown[priority]++

		category := g.Category
		if category == "" {
			category = "other"
		}
		res.CategoryBreakdown[category]++

		target += g.TargetAmount
		saved += g.CurrentAmount
		res.Goals = append(res.Goals, GoalListItem{
			Name:     g.Name,
			Target:   g.TargetAmount,
			Current:  g.CurrentAmount,
			Progress: money.Round1(g.ProgressPercentage()),
			Priority: g.Priority,
			Deadline: g.Deadline,
		})
	}

	res.Overview = GoalsOverview{
		TotalActiveGoals:  len(res.Goals),
		TotalTargetAmount: money.Round2(target),
		TotalSaved:        money.Round2(saved),
		OverallProgress:   money.Round1(money.Percent(saved, target)),
		AmountRemaining:   money.Round2(target - saved),
	}
	return res
}
