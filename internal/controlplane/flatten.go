package controlplane

import "github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/domain"

// Flatten normalizes one server's nested project tree into a flat ordered
// list of trackable units. Pure function of the listing response; the order
// follows the control plane's project/environment ordering.
func Flatten(server domain.Server, projects []Project) []domain.TrackableUnit {
	units := make([]domain.TrackableUnit, 0)
	for _, project := range projects {
		for _, env := range project.Environments {
			for _, app := range env.Applications {
				units = append(units, domain.TrackableUnit{
					ServerID:      server.ID,
					ServerName:    server.Name,
					ServerBaseURL: server.BaseURL,
					UnitID:        app.ApplicationID,
					Name:          app.Name,
					Kind:          domain.UnitKindApplication,
					ProjectName:   project.Name,
					AppStatus:     app.ApplicationStatus,
					Repository:    app.Repository,
					Owner:         app.Owner,
					Branch:        app.Branch,
				})
			}
			for _, stack := range env.Compose {
				units = append(units, domain.TrackableUnit{
					ServerID:      server.ID,
					ServerName:    server.Name,
					ServerBaseURL: server.BaseURL,
					UnitID:        stack.ComposeID,
					Name:          stack.Name,
					Kind:          domain.UnitKindGroup,
					ProjectName:   project.Name,
					AppStatus:     stack.ComposeStatus,
				})
			}
		}
	}
	return units
}
