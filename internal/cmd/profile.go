package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	clierrors "github.com/zfogg/circle/cli/pkg/errors"
	"github.com/zfogg/circle/cli/pkg/formatter"
	"github.com/zfogg/circle/cli/pkg/models"
	"github.com/zfogg/circle/cli/pkg/output"
	"github.com/zfogg/circle/cli/pkg/poll"
	"github.com/zfogg/circle/cli/pkg/service"
)

const dateLayout = "2006-01-02"

var (
	profileWatch bool

	activityKind           string
	activityTitle          string
	activitySpecialization string
	activityDomain         int
	activityFunction       int
	activityOccupation     int
	activityStart          string
	activityEnd            string
	activityDescription    string
	activityImage          string
)

var activityKinds = []string{service.ActivityEducation, service.ActivityJob, service.ActivityOther}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "User profile commands",
	Long:  "View and manage user profiles",
}

var profileViewCmd = &cobra.Command{
	Use:   "view [user-id]",
	Short: "View a profile (yours by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := signedIn(cmd)
		if err != nil {
			return err
		}
		userID := ""
		if len(args) > 0 {
			userID = args[0]
		}

		if profileWatch {
			return watch(cmd, func(ctx context.Context, l poll.Listener[*models.UserProfile]) (*poll.Handle, error) {
				return svc.Profiles.Watch(ctx, userID, l)
			}, formatter.PrintProfile)
		}

		p, err := svc.Profiles.Profile(cmd.Context(), userID)
		if err != nil {
			return err
		}
		return formatter.PrintProfile(p)
	},
}

var profileUsernameCmd = &cobra.Command{
	Use:   "username <new-username>",
	Short: "Change your username",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := signedIn(cmd)
		if err != nil {
			return err
		}
		name, err := svc.Profiles.UpdateUsername(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		output.PrintSuccess("Username changed to %s", name)
		return nil
	},
}

var profileAvatarCmd = &cobra.Command{
	Use:   "avatar <path|url|base64>",
	Short: "Change your profile picture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := signedIn(cmd)
		if err != nil {
			return err
		}
		url, err := svc.Profiles.UpdateAvatar(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		output.PrintSuccess("Avatar set to %s", url)
		return nil
	},
}

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Education, jobs and other activities",
}

var activityListCmd = &cobra.Command{
	Use:   "list [user-id]",
	Short: "List activities",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := signedIn(cmd)
		if err != nil {
			return err
		}
		userID := ""
		if len(args) > 0 {
			userID = args[0]
		}
		a, err := svc.Profiles.Activities(cmd.Context(), userID)
		if err != nil {
			return err
		}
		return formatter.PrintActivities(a.Education, a.Jobs, a.Other)
	},
}

var activityAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an activity",
	Long: `Add an activity to your profile. Missing kind and domain are
chosen interactively; see 'circle-cli lookup' for ids.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := signedIn(cmd)
		if err != nil {
			return err
		}
		in, err := activityInput(cmd, svc.Lookups)
		if err != nil {
			return err
		}
		id, err := svc.Profiles.AddActivity(cmd.Context(), in)
		if err != nil {
			return err
		}
		output.PrintSuccess("Activity %s added", id)
		return nil
	},
}

var activityDeleteCmd = &cobra.Command{
	Use:   "delete <education|job|other> <id>",
	Short: "Delete an activity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := signedIn(cmd)
		if err != nil {
			return err
		}
		if err := svc.Profiles.DeleteActivity(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		output.PrintSuccess("Activity deleted")
		return nil
	},
}

// activityInput collects the add flags, prompting for kind and domain
// when they were not given.
func activityInput(cmd *cobra.Command, lookups *service.LookupService) (service.ActivityInput, error) {
	in := service.ActivityInput{
		Kind:           activityKind,
		Title:          activityTitle,
		Specialization: activitySpecialization,
		DomainID:       activityDomain,
		FunctionID:     activityFunction,
		OccupationID:   activityOccupation,
		Description:    activityDescription,
		Image:          activityImage,
	}

	if in.Kind == "" {
		i, err := prompt.Select("Kind of activity", activityKinds)
		if err != nil {
			return in, err
		}
		in.Kind = activityKinds[i]
	}

	if in.DomainID == 0 {
		domains, err := lookups.Domains(cmd.Context())
		if err != nil {
			return in, err
		}
		names := make([]string, len(domains))
		for i, d := range domains {
			names[i] = d.Name
		}
		i, err := prompt.Select("Domain", names)
		if err != nil {
			return in, err
		}
		in.DomainID = domains[i].ID
	}

	if in.Title == "" {
		title, err := prompt.String("Title: ")
		if err != nil {
			return in, err
		}
		in.Title = title
	}

	if activityStart != "" {
		start, err := time.Parse(dateLayout, activityStart)
		if err != nil {
			return in, clierrors.ValidationError("start", "use YYYY-MM-DD")
		}
		in.StartDate = start
	}
	if activityEnd != "" {
		end, err := time.Parse(dateLayout, activityEnd)
		if err != nil {
			return in, clierrors.ValidationError("end", "use YYYY-MM-DD")
		}
		in.EndDate = &end
	}
	return in, nil
}

func init() {
	profileViewCmd.Flags().BoolVarP(&profileWatch, "watch", "w", false, "Keep the profile open and refresh it periodically")

	f := activityAddCmd.Flags()
	f.StringVar(&activityKind, "kind", "", "education, job or other")
	f.StringVar(&activityTitle, "title", "", "Institution, company or title")
	f.StringVar(&activitySpecialization, "specialization", "", "Specialization (education)")
	f.IntVar(&activityDomain, "domain", 0, "Domain id")
	f.IntVar(&activityFunction, "function", 0, "Function id (job)")
	f.IntVar(&activityOccupation, "occupation", 0, "Occupation id (job)")
	f.StringVar(&activityStart, "start", "", "Start date, YYYY-MM-DD")
	f.StringVar(&activityEnd, "end", "", "End date, YYYY-MM-DD (omit if ongoing)")
	f.StringVar(&activityDescription, "description", "", "Free text")
	f.StringVar(&activityImage, "image", "", "Attach an image")

	activityCmd.AddCommand(activityListCmd)
	activityCmd.AddCommand(activityAddCmd)
	activityCmd.AddCommand(activityDeleteCmd)

	profileCmd.AddCommand(profileViewCmd)
	profileCmd.AddCommand(profileUsernameCmd)
	profileCmd.AddCommand(profileAvatarCmd)
	profileCmd.AddCommand(activityCmd)
}
