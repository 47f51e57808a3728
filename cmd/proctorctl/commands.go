package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/ahrav/go-proctor/internal/answerkey"
	"github.com/ahrav/go-proctor/internal/domain"
	"github.com/ahrav/go-proctor/internal/grading"
	"github.com/ahrav/go-proctor/internal/numeric"
	"github.com/ahrav/go-proctor/internal/registration"
	"github.com/ahrav/go-proctor/internal/schedule"
	"github.com/ahrav/go-proctor/internal/scoreband"
	"github.com/ahrav/go-proctor/internal/section"
)

var (
	heading = color.New(color.FgCyan, color.Bold)
	good    = color.New(color.FgGreen)
	warn    = color.New(color.FgYellow)
)

func (a *app) table(header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(a.out)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	return t
}

func id(n int64) string { return strconv.FormatInt(n, 10) }

func optionalID(n *int64) string {
	if n == nil {
		return "-"
	}
	return id(*n)
}

func (a *app) evaluationsCmd() *ffcli.Command {
	fs := flag.NewFlagSet("proctorctl evaluations", flag.ContinueOnError)
	var filter domain.EvaluationFilter
	fs.Int64Var(&filter.SiteID, "site", 0, "only evaluations of this site")
	fs.Int64Var(&filter.CycleID, "cycle", 0, "only evaluations of this cycle")
	fs.BoolVar(&filter.ActiveOnly, "active", false, "exclude inactive evaluations")

	return &ffcli.Command{
		Name:       "evaluations",
		ShortUsage: "proctorctl evaluations [-site N] [-cycle N] [-active]",
		ShortHelp:  "List scheduled evaluations",
		FlagSet:    fs,
		Exec: func(ctx context.Context, _ []string) error {
			if err := a.open(ctx); err != nil {
				return err
			}
			items, err := schedule.NewService(a.res.Store).List(ctx, filter)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				warn.Fprintln(a.out, "no evaluations")
				return nil
			}
			t := a.table("ID", "Name", "Date", "Start", "End", "Site", "Cycle", "Active")
			for _, e := range items {
				t.Append([]string{
					id(e.ID), e.Name, e.StartDate, e.StartTime, e.EndTime,
					id(e.SiteID), optionalID(e.CycleID), strconv.FormatBool(e.Active),
				})
			}
			t.Render()
			return nil
		},
	}
}

// parseIDs parses positive integer arguments.
func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.ParseInt(part, 10, 64)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("invalid id %q", part)
			}
			ids = append(ids, n)
		}
	}
	return ids, nil
}

func (a *app) reconcileCmd() *ffcli.Command {
	fs := flag.NewFlagSet("proctorctl reconcile", flag.ContinueOnError)
	evaluationID := fs.Int64("evaluation", 0, "scheduled evaluation id")

	return &ffcli.Command{
		Name:       "reconcile",
		ShortUsage: "proctorctl reconcile -evaluation N <section-cycle-id>...",
		ShortHelp:  "Make the active section assignments match the given section cycles",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			selected, err := parseIDs(args)
			if err != nil {
				return err
			}
			if err := a.open(ctx); err != nil {
				return err
			}
			if _, err := schedule.NewService(a.res.Store).Get(ctx, *evaluationID); err != nil {
				return err
			}
			res, err := section.NewReconciler(a.res.Store, a.catalog).
				WithConcurrency(a.cfg.Concurrency).
				Reconcile(ctx, *evaluationID, selected)
			if err != nil && !errors.Is(err, section.ErrPartial) {
				return err
			}

			heading.Fprintf(a.out, "created %d, reactivated %d, deactivated %d\n", res.Created, res.Reactivated, res.Deactivated)
			t := a.table("ID", "Section cycle", "Section", "State")
			for _, as := range res.Assignments {
				t.Append([]string{id(as.ID), id(as.SectionCycleID), optionalID(as.SectionID), as.State.String()})
			}
			t.Render()
			for _, f := range res.Failures {
				warn.Fprintf(a.out, "%v section cycle %d: %s\n", f.Operation.Action, f.Operation.Assignment.SectionCycleID, f.Error)
			}
			return err
		},
	}
}

func (a *app) keysCmd() *ffcli.Command {
	fs := flag.NewFlagSet("proctorctl keys", flag.ContinueOnError)
	bandID := fs.Int64("band", 0, "score band id")

	return &ffcli.Command{
		Name:       "keys",
		ShortUsage: "proctorctl keys -band N",
		ShortHelp:  "Show the editable answer keys of a score band",
		FlagSet:    fs,
		Exec: func(ctx context.Context, _ []string) error {
			if err := a.open(ctx); err != nil {
				return err
			}
			detail, err := a.res.Store.GetScoreBand(ctx, *bandID)
			if err != nil {
				return err
			}
			evaluation, err := schedule.NewService(a.res.Store).Get(ctx, detail.ScheduledEvaluationID)
			if err != nil {
				return err
			}
			l := answerkey.NewLedger(a.res.Store, evaluation, detail)
			if _, err := l.Load(ctx); err != nil {
				return err
			}
			heading.Fprintf(a.out, "%s: questions %s to %s\n", evaluation.Name,
				numeric.Format(detail.RangeStart), numeric.Format(detail.RangeFin))
			t := a.table("ID", "Order", "Answer", "Weight", "Version")
			for _, d := range l.Drafts() {
				weight := "-"
				if d.Weight != nil {
					weight = numeric.Format(*d.Weight)
				}
				t.Append([]string{id(d.ID), strconv.Itoa(d.QuestionOrder), d.Answer, weight, strconv.Itoa(d.Version)})
			}
			t.Render()
			return nil
		},
	}
}

func (a *app) registerCmd() *ffcli.Command {
	fs := flag.NewFlagSet("proctorctl register", flag.ContinueOnError)
	var target registration.Target
	var sectionID int64
	fs.Int64Var(&target.EvaluationID, "evaluation", 0, "scheduled evaluation id")
	fs.Int64Var(&target.SiteID, "site", 0, "site id")
	fs.Int64Var(&target.CycleID, "cycle", 0, "cycle id")
	fs.Int64Var(&sectionID, "section", 0, "restrict to one section")

	return &ffcli.Command{
		Name:       "register",
		ShortUsage: "proctorctl register -evaluation N -site N -cycle N [-section N]",
		ShortHelp:  "Register every enrolled student of a section for an evaluation",
		FlagSet:    fs,
		Exec: func(ctx context.Context, _ []string) error {
			target.SectionID = domain.ID(sectionID)
			if err := target.Validate(); err != nil {
				return err
			}
			if err := a.open(ctx); err != nil {
				return err
			}
			if _, err := schedule.NewService(a.res.Store).Get(ctx, target.EvaluationID); err != nil {
				return err
			}
			sum, err := registration.NewRegistrar(a.res.Store, a.res.Store).RegisterSection(ctx, target)
			if err != nil {
				return err
			}
			printer := good
			if sum.Failed > 0 {
				printer = warn
			}
			printer.Fprintln(a.out, sum.String())
			if len(sum.Failures) > 0 {
				t := a.table("Student", "Error")
				for _, f := range sum.Failures {
					t.Append([]string{id(f.StudentID), f.Error})
				}
				t.Render()
			}
			return nil
		},
	}
}

// parseSheet parses "order=answer" pairs into an answer sheet.
func parseSheet(args []string) (map[int]string, error) {
	sheet := make(map[int]string, len(args))
	for _, arg := range args {
		order, answer, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid response %q: want order=answer", arg)
		}
		n, err := strconv.Atoi(strings.TrimSpace(order))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid question order %q", order)
		}
		sheet[n] = strings.TrimSpace(answer)
	}
	return sheet, nil
}

func (a *app) gradeCmd() *ffcli.Command {
	fs := flag.NewFlagSet("proctorctl grade", flag.ContinueOnError)
	evaluationID := fs.Int64("evaluation", 0, "scheduled evaluation id")
	sectionID := fs.Int64("section", 0, "section of the student")

	return &ffcli.Command{
		Name:       "grade",
		ShortUsage: "proctorctl grade -evaluation N [-section N] <order=answer>...",
		ShortHelp:  "Grade an answer sheet against the current answer keys",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			sheet, err := parseSheet(args)
			if err != nil {
				return err
			}
			if err := a.open(ctx); err != nil {
				return err
			}
			if _, err := schedule.NewService(a.res.Store).Get(ctx, *evaluationID); err != nil {
				return err
			}
			res, err := grading.NewGrader(scoreband.New(a.res.Store), a.res.Store).
				Grade(ctx, *evaluationID, domain.ID(*sectionID), sheet)
			if err != nil {
				return err
			}

			t := a.table("Order", "Expected", "Response", "Outcome", "Points")
			for _, q := range res.Questions {
				t.Append([]string{strconv.Itoa(q.Order), q.Expected, q.Response, string(q.Outcome), numeric.Format(q.Points)})
			}
			t.Render()
			heading.Fprintf(a.out, "score %s of %s\n", numeric.Format(res.Score), numeric.Format(res.MaxScore))
			if res.Unscored > 0 {
				warn.Fprintf(a.out, "%d questions have no score band\n", res.Unscored)
			}
			return nil
		},
	}
}

func (a *app) parseCmd() *ffcli.Command {
	return &ffcli.Command{
		Name:       "parse",
		ShortUsage: "proctorctl parse <value>...",
		ShortHelp:  "Parse locale-formatted numbers",
		Exec: func(_ context.Context, args []string) error {
			if len(args) == 0 {
				return flag.ErrHelp
			}
			t := a.table("Input", "Value")
			for _, arg := range args {
				v := "invalid"
				if f, ok := numeric.ParseString(arg); ok {
					v = numeric.Format(f)
				}
				t.Append([]string{arg, v})
			}
			t.Render()
			return nil
		},
	}
}

func (a *app) catalogCmd() *ffcli.Command {
	fs := flag.NewFlagSet("proctorctl catalog", flag.ContinueOnError)
	cycleID := fs.Int64("cycle", 0, "cycle of the listed section cycles")

	return &ffcli.Command{
		Name:       "catalog",
		ShortUsage: "proctorctl catalog sites|cycles|sections|careers|section-cycles [-cycle N]",
		ShortHelp:  "List reference data",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return flag.ErrHelp
			}
			if err := a.open(ctx); err != nil {
				return err
			}
			return a.printCatalog(ctx, args[0], *cycleID)
		},
	}
}

func (a *app) printCatalog(ctx context.Context, kind string, cycleID int64) error {
	var (
		header []string
		rows   [][]string
	)
	switch kind {
	case "sites":
		items, err := a.catalog.Sites(ctx)
		if err != nil {
			return err
		}
		header = []string{"ID", "Name"}
		for _, s := range items {
			rows = append(rows, []string{id(s.ID), s.Name})
		}
	case "cycles":
		items, err := a.catalog.Cycles(ctx)
		if err != nil {
			return err
		}
		header = []string{"ID", "Name", "Active", "Enrollment"}
		for _, c := range items {
			rows = append(rows, []string{id(c.ID), c.Name, strconv.FormatBool(c.Active), c.EnrollmentOpen + " / " + c.EnrollmentClose})
		}
	case "sections":
		items, err := a.catalog.Sections(ctx)
		if err != nil {
			return err
		}
		header = []string{"ID", "Name"}
		for _, s := range items {
			rows = append(rows, []string{id(s.ID), s.Name})
		}
	case "careers":
		items, err := a.catalog.Careers(ctx)
		if err != nil {
			return err
		}
		header = []string{"ID", "Name"}
		for _, c := range items {
			rows = append(rows, []string{id(c.ID), c.Name})
		}
	case "section-cycles":
		items, err := a.catalog.SectionCycles(ctx, cycleID)
		if err != nil {
			return err
		}
		header = []string{"ID", "Name", "Section", "Cycle"}
		for _, sc := range items {
			rows = append(rows, []string{id(sc.ID), sc.Name, optionalID(sc.SectionID), id(sc.CycleID)})
		}
	default:
		return fmt.Errorf("unknown catalog %q", kind)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		x, _ := strconv.ParseInt(rows[i][0], 10, 64)
		y, _ := strconv.ParseInt(rows[j][0], 10, 64)
		return x < y
	})
	t := a.table(header...)
	t.AppendBulk(rows)
	t.Render()
	return nil
}
