package service

import (
	"context"
	"crypto/rand"
	"domoticz-hue-emulator/internal/domain/model"
	"domoticz-hue-emulator/internal/ports"
	"encoding/hex"
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"
)

// Hue bridges derive their UPnP UDN from this fixed prefix and the MAC.
const udnPrefix = "2f402f80-da50-11e1-9b23-"

// LoadIdentity returns the stored bridge identity, creating and storing one
// from mac on first start. Once stored, the identity survives a changed NIC.
func LoadIdentity(ctx context.Context, repo ports.IdentityRepository, mac net.HardwareAddr) (model.Identity, error) {
	stored, err := repo.Get(ctx)
	if err != nil {
		return model.Identity{}, fmt.Errorf("loading bridge identity: %w", err)
	}
	if stored != nil && validIdentity(*stored) {
		return *stored, nil
	}

	identity, err := NewIdentity(mac)
	if err != nil {
		return model.Identity{}, err
	}
	if stored != nil {
		identity.Usernames = stored.Usernames
	}
	if err := repo.Save(ctx, &identity); err != nil {
		return model.Identity{}, fmt.Errorf("saving bridge identity: %w", err)
	}
	return identity, nil
}

// NewIdentity derives the identity from a hardware address the way a Hue
// bridge does. Without a usable address a random one is generated.
func NewIdentity(mac net.HardwareAddr) (model.Identity, error) {
	if len(mac) < 6 {
		mac = make(net.HardwareAddr, 6)
		if _, err := rand.Read(mac); err != nil {
			return model.Identity{}, fmt.Errorf("generating hardware address: %w", err)
		}
		// Locally administered, unicast.
		mac[0] = (mac[0] | 0x02) &^ 0x01
	}
	mac = mac[:6]
	raw := hex.EncodeToString(mac)

	return model.Identity{
		UUID:     udnPrefix + raw,
		BridgeID: "001788FFFE" + strings.ToUpper(raw[6:]),
		MAC:      mac.String(),
	}, nil
}

func validIdentity(id model.Identity) bool {
	if _, err := uuid.Parse(id.UUID); err != nil {
		return false
	}
	if len(id.BridgeID) != 16 {
		return false
	}
	_, err := net.ParseMAC(id.MAC)
	return err == nil
}
