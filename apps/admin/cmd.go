package main

import (
	"bufio"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"golang.org/x/term"

	"github.com/trezcool/alertify/apps"
	"github.com/trezcool/alertify/core"
	"github.com/trezcool/alertify/core/alert"
)

var (
	isTerminalFunc = term.IsTerminal // mockable
	readLineFunc   = readLine        // mockable

	errHelp    = errors.New("help provided")
	errAborted = errors.New("aborted")
)

type commandLine struct {
	db       *sql.DB
	alertSvc *alert.Service
	newTask  func() *alert.SendAlertsTask
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                                    - run a goose command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  addalert -course ID -cmid ID [-template T] [-disabled]    - create an alert for an activity")
	fmt.Fprintln(cli.out, "  listalerts -course ID                                     - list the alerts of a course")
	fmt.Fprintln(cli.out, "  activities -course ID                                     - list the activities that can get an alert")
	fmt.Fprintln(cli.out, "  editalert -course ID -id ID [-template T] [-enabled B]    - change an alert's template or state")
	fmt.Fprintln(cli.out, "  deletealert -course ID -id ID [-yes]                      - delete an alert")
	fmt.Fprintln(cli.out, "  purgeactivity -cmid ID                                    - delete the alerts of a deleted activity")
	fmt.Fprintln(cli.out, "  purgecourse -course ID [-yes]                             - delete the alerts of a deleted course")
	fmt.Fprintln(cli.out, "  sendalerts [-date YYYY-MM-DD]                             - send the alerts due today or on date")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addCmd := flag.NewFlagSet("addalert", flag.ContinueOnError)
	addCourse := addCmd.Int("course", 0, "The course id.")
	addActivity := addCmd.Int("cmid", 0, "The course module id of the activity.")
	addTemplate := addCmd.String("template", "", "The message template. Defaults to the configured template.")
	addDisabled := addCmd.Bool("disabled", false, "Create the alert disabled.")

	listCmd := flag.NewFlagSet("listalerts", flag.ContinueOnError)
	listCourse := listCmd.Int("course", 0, "The course id.")

	actsCmd := flag.NewFlagSet("activities", flag.ContinueOnError)
	actsCourse := actsCmd.Int("course", 0, "The course id.")

	editCmd := flag.NewFlagSet("editalert", flag.ContinueOnError)
	editCourse := editCmd.Int("course", 0, "The course id.")
	editID := editCmd.Int("id", 0, "The alert id.")
	editTemplate := editCmd.String("template", "", "The new message template.")
	editEnabled := editCmd.String("enabled", "", "true or false.")

	deleteCmd := flag.NewFlagSet("deletealert", flag.ContinueOnError)
	deleteCourse := deleteCmd.Int("course", 0, "The course id.")
	deleteID := deleteCmd.Int("id", 0, "The alert id.")
	deleteYes := deleteCmd.Bool("yes", false, "Do not ask for confirmation.")

	purgeActCmd := flag.NewFlagSet("purgeactivity", flag.ContinueOnError)
	purgeActivity := purgeActCmd.Int("cmid", 0, "The course module id of the deleted activity.")

	purgeCourseCmd := flag.NewFlagSet("purgecourse", flag.ContinueOnError)
	purgeCourse := purgeCourseCmd.Int("course", 0, "The course id.")
	purgeYes := purgeCourseCmd.Bool("yes", false, "Do not ask for confirmation.")

	sendCmd := flag.NewFlagSet("sendalerts", flag.ContinueOnError)
	sendDate := sendCmd.String("date", "", "The day to process (YYYY-MM-DD). Defaults to today.")

	for _, fs := range []*flag.FlagSet{addCmd, listCmd, actsCmd, editCmd, deleteCmd, purgeActCmd, purgeCourseCmd, sendCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "addalert":
		if err := addCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.addAlert(*addCourse, *addActivity, *addTemplate, !*addDisabled)

	case "listalerts":
		if err := listCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *listCourse <= 0 {
			listCmd.Usage()
			return errHelp
		}
		return cli.listAlerts(*listCourse)

	case "activities":
		if err := actsCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *actsCourse <= 0 {
			actsCmd.Usage()
			return errHelp
		}
		return cli.listActivities(*actsCourse)

	case "editalert":
		if err := editCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *editCourse <= 0 || *editID <= 0 {
			editCmd.Usage()
			return errHelp
		}
		var uu alert.UpdateAlert
		editCmd.Visit(func(f *flag.Flag) {
			if f.Name == "template" {
				uu.Template = editTemplate
			}
		})
		if *editEnabled != "" {
			enabled, err := strconv.ParseBool(core.CleanString(*editEnabled, true /* lower */))
			if err != nil {
				return apps.NewArgumentError(fmt.Sprintf("-enabled: %q is not a boolean", *editEnabled))
			}
			uu.Enabled = &enabled
		}
		return cli.editAlert(*editCourse, *editID, uu)

	case "deletealert":
		if err := deleteCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *deleteCourse <= 0 || *deleteID <= 0 {
			deleteCmd.Usage()
			return errHelp
		}
		if err := cli.confirm(fmt.Sprintf("Delete alert %d of course %d?", *deleteID, *deleteCourse), *deleteYes); err != nil {
			return err
		}
		return cli.deleteAlert(*deleteCourse, *deleteID)

	case "purgeactivity":
		if err := purgeActCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *purgeActivity <= 0 {
			purgeActCmd.Usage()
			return errHelp
		}
		return cli.purgeActivity(*purgeActivity)

	case "purgecourse":
		if err := purgeCourseCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *purgeCourse <= 0 {
			purgeCourseCmd.Usage()
			return errHelp
		}
		if err := cli.confirm(fmt.Sprintf("Delete every alert of course %d?", *purgeCourse), *purgeYes); err != nil {
			return err
		}
		return cli.purgeCourse(*purgeCourse)

	case "sendalerts":
		if err := sendCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.sendAlerts(*sendDate)

	default:
		cli.printUsage()
		return errHelp
	}
}

// confirm asks before a destructive command. Without a terminal, -yes is required.
func (cli *commandLine) confirm(question string, yes bool) error {
	if yes {
		return nil
	}
	if !isTerminalFunc(int(os.Stdin.Fd())) {
		return apps.NewArgumentError("stdin is not a terminal: pass -yes to confirm")
	}
	fmt.Fprintf(cli.out, "%s [y/N] ", question)
	answer, err := readLineFunc()
	if err != nil {
		return err
	}
	switch core.CleanString(answer, true /* lower */) {
	case "y", "yes":
		return nil
	default:
		return errAborted
	}
}

func readLine() (string, error) {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return line, nil
}
