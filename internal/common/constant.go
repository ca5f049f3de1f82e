package common

// AuthorizationHeaderName carries the identity token as "Bearer <token>".
const AuthorizationHeaderName = "Authorization"

// BearerScheme is the only accepted authorization scheme.
const BearerScheme = "Bearer"

// ProofSecretSize is the number of random bytes in a proof token secret.
const ProofSecretSize = 32
