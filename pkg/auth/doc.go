// Package auth provides the security clients the SDK delegates credential
// handling to: a symmetric-key client that signs shared-access tokens, and
// an X.509 client backed by a certificate store (in-memory or on disk,
// with PEM and PKCS#12 loading).
//
// The attestation flows themselves are owned by the platform; this package
// only produces the credentials a transport or provisioning request
// presents.
package auth
