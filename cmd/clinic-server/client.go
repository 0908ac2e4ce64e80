package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dentflow/clinic/internal/calendar"
	"github.com/dentflow/clinic/internal/domain/scheduling"
	"github.com/dentflow/clinic/internal/platform/db"
)

func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().String("server", "http://localhost:8000", "Clinic API base URL")
	cmd.Flags().String("clinic", "", "Clinic identifier sent as the "+db.HeaderClinicID+" header")
	cmd.Flags().String("email", "", "Login email")
	cmd.Flags().String("password", "", "Login password")
	cmd.Flags().String("tz", "", "IANA time zone for display (defaults to local)")
}

// openCalendar logs in and loads the appointment list. The returned func
// logs out.
func openCalendar(ctx context.Context, cmd *cobra.Command) (*calendar.Calendar, func(), error) {
	server, _ := cmd.Flags().GetString("server")
	clinic, _ := cmd.Flags().GetString("clinic")
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	tz, _ := cmd.Flags().GetString("tz")
	if email == "" {
		return nil, nil, fmt.Errorf("--email is required")
	}

	loc := time.Local
	if tz != "" {
		var err error
		if loc, err = time.LoadLocation(tz); err != nil {
			return nil, nil, fmt.Errorf("invalid --tz: %w", err)
		}
	}

	client := calendar.NewClient(server, clinic)
	sess, err := client.Login(ctx, email, password)
	if err != nil {
		return nil, nil, fmt.Errorf("login failed: %w", err)
	}
	logout := func() {
		if err := client.Logout(context.Background(), sess); err != nil {
			fmt.Fprintf(os.Stderr, "logout failed: %v\n", err)
		}
	}

	cal := calendar.New(client.For(sess), sess, loc)
	if err := cal.Load(ctx); err != nil {
		logout()
		return nil, nil, err
	}
	return cal, logout, nil
}

func agendaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "Log in and print the appointment calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()

			cal, logout, err := openCalendar(ctx, cmd)
			if err != nil {
				return err
			}
			defer logout()

			events := cal.Events()
			sort.Slice(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "START\tEND\tTITLE\tNOTES\tID")
			for _, ev := range events {
				d, err := cal.SelectEvent(ev.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					ev.Start.Format("2006-01-02 15:04"), ev.End.Format("15:04"), ev.Title, d.Notes, ev.ID)
				cal.CloseDetail()
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Printf("%d appointment(s).\n", len(events))
			return nil
		},
	}
	addClientFlags(cmd)
	return cmd
}

func bookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Log in and book an appointment",
		RunE: func(cmd *cobra.Command, args []string) error {
			patientID, _ := cmd.Flags().GetString("patient")
			date, _ := cmd.Flags().GetString("date")
			at, _ := cmd.Flags().GetString("time")
			duration, _ := cmd.Flags().GetInt("duration")
			kind, _ := cmd.Flags().GetString("type")
			notes, _ := cmd.Flags().GetString("notes")

			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()

			cal, logout, err := openCalendar(ctx, cmd)
			if err != nil {
				return err
			}
			defer logout()

			slot := scheduling.Appointment{Date: date, Time: at}
			start, err := slot.Start(time.Local)
			if err != nil {
				return err
			}
			if _, err := cal.SelectSlot(start); err != nil {
				return err
			}
			// Keep the typed date and time rather than the slot's rendering.
			if err := cal.Edit(func(a *scheduling.Appointment) {
				a.PatientID = patientID
				a.Date = date
				a.Time = at
				a.Duration = duration
				a.Type = kind
				a.Notes = notes
			}); err != nil {
				return err
			}
			if err := cal.Submit(ctx); err != nil {
				return fmt.Errorf("booking failed: %w", err)
			}
			if err := cal.LoadErr(); err != nil {
				fmt.Fprintf(os.Stderr, "booked, but reloading the calendar failed: %v\n", err)
				return nil
			}
			fmt.Printf("Booked %s on %s at %s (%d min). Calendar now has %d appointment(s).\n",
				kind, date, at, duration, len(cal.Events()))
			return nil
		},
	}
	addClientFlags(cmd)
	cmd.Flags().String("patient", "", "Patient ID")
	cmd.Flags().String("date", "", "Appointment date (YYYY-MM-DD)")
	cmd.Flags().String("time", "", "Appointment time (HH:MM)")
	cmd.Flags().Int("duration", calendar.DefaultDuration, "Duration in minutes")
	cmd.Flags().String("type", "", "Appointment type")
	cmd.Flags().String("notes", "", "Notes")
	return cmd
}
