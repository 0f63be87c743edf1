package storage

import (
	"github.com/KuuCi/discord-postplant/internal/tracker"
)

// Registration implements tracker.RegistrationSource over the repository.
// Together with LastAnnounced/SetLastAnnounced (tracker.Ledger) this is the
// only state the correlation core reads outside its own memory.
func (r *Repository) Registration(guildID, userID string) (*tracker.Registration, error) {
	reg, err := r.GetRegistration(guildID, userID)
	if err != nil || reg == nil {
		return nil, err
	}
	return &tracker.Registration{
		RiotName: reg.RiotName,
		RiotTag:  reg.RiotTag,
		Region:   reg.Region,
	}, nil
}
