// Package accessory implements the device-state synchronisation and
// command-sequencing engine behind a combined TV + streaming receiver
// accessory.
//
// # Components
//
//   - SimpleRemoteLink: stateless primary device (alive check, key send)
//   - SessionedLink: stateful secondary device (connect, launch, volume)
//   - PowerController: power on/off with secondary launch fallback
//   - KeySequencer: serialised multi-key sequences with inter-key delay
//   - Reconciler: periodic concurrent polling into CachedState
//
// Accessory composes these into the host surface (power, volume, channel,
// key). Reads are served from CachedState; writes go to the devices.
//
// # Concurrency
//
// The only background activity is the Reconciler loop. The KeySequencer guard
// is the only mutual exclusion between commands: a second sequence is rejected
// with ErrBusy instead of waiting.
//
// # Usage
//
//	acc := accessory.New(accessory.Config{
//	    Name:            "Living Room TV",
//	    ReceiverAddress: "192.168.1.20:8009",
//	}, samsungClient, castClient, log)
//	acc.Start(ctx)
//	defer acc.Stop()
//
//	if err := acc.SetChannel(ctx, "42"); errors.Is(err, accessory.ErrBusy) {
//	    // another sequence is running
//	}
package accessory
