package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/trezcool/alertify/core/alert"
)

var nowFunc = time.Now // mockable

func (cli *commandLine) addAlert(courseID, activityID int, tmpl string, enabled bool) error {
	a, err := cli.alertSvc.Create(context.Background(), alert.NewAlert{
		CourseID:   courseID,
		ActivityID: activityID,
		Template:   tmpl,
		Enabled:    enabled,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "created alert %d, first due on %s\n", a.ID, a.NextDueAt.In(cli.alertSvc.Location()).Format("2006-01-02"))
	return nil
}

func (cli *commandLine) listAlerts(courseID int) error {
	summaries, err := cli.alertSvc.Summaries(context.Background(), courseID)
	if err != nil {
		return err
	}
	loc := cli.alertSvc.Location()

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tACTIVITY\tENABLED\tNEXT DUE")
	for _, s := range summaries {
		fmt.Fprintf(w, "%d\t%s\t%t\t%s\n", s.ID, s.ActivityName, s.Enabled, s.NextDueAt.In(loc).Format("2006-01-02"))
	}
	return w.Flush()
}

func (cli *commandLine) listActivities(courseID int) error {
	acts, err := cli.alertSvc.AvailableActivities(context.Background(), courseID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CMID\tTYPE\tNAME")
	for _, act := range acts {
		fmt.Fprintf(w, "%d\t%s\t%s\n", act.ID, act.ModName, act.Name)
	}
	return w.Flush()
}

func (cli *commandLine) editAlert(courseID, id int, uu alert.UpdateAlert) error {
	a, err := cli.alertSvc.Update(context.Background(), courseID, id, uu)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "updated alert %d (enabled: %t)\n", a.ID, a.Enabled)
	return nil
}

func (cli *commandLine) deleteAlert(courseID, id int) error {
	if err := cli.alertSvc.Delete(context.Background(), courseID, id); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "deleted alert %d\n", id)
	return nil
}

func (cli *commandLine) purgeActivity(activityID int) error {
	n, err := cli.alertSvc.DeleteByActivity(context.Background(), activityID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "deleted %d alert(s)\n", n)
	return nil
}

func (cli *commandLine) purgeCourse(courseID int) error {
	n, err := cli.alertSvc.DeleteByCourse(context.Background(), courseID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "deleted %d alert(s)\n", n)
	return nil
}

func (cli *commandLine) sendAlerts(date string) error {
	loc := cli.alertSvc.Location()
	today := nowFunc().In(loc)
	if date != "" {
		day, err := time.ParseInLocation("2006-01-02", date, loc)
		if err != nil {
			return fmt.Errorf("invalid -date %q: want YYYY-MM-DD", date)
		}
		today = day
	}

	report, err := cli.newTask().Run(context.Background(), today)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s: %d due, %d processed, %d invalid, %d sent, %d failed\n",
		today.Format("2006-01-02"), report.Due, report.Processed, report.Invalid, report.Sent, report.Failed)
	return nil
}
