// Package provisioning registers a device with a provisioning service and
// resolves the hub endpoint it is assigned to.
//
// The attestation flow itself is owned by the provisioning service; this
// package only formats the registration request, presents credentials from
// a security client, and polls the registration operation until it reaches
// a terminal state.
package provisioning
