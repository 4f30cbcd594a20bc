package apperr

// codeInfo holds the default message and HTTP status for a Code. A status
// of 0 means "apply the kind's default" (400 for Fail, 500 for Internal).
type codeInfo struct {
	message string
	status  int
}

// Well-known codes referenced directly by pipeline/router/middleware logic.
const (
	CodeNotFoundRoute   Code = "api.404"
	CodeUnknownError    Code = "api.unknown_error"
	CodeRateLimited     Code = "*.rate_limited"
	CodeHytaleRateLimit Code = "hytale.rate_limited"

	CodeMinecraftInvalidUsername Code = "minecraft.invalid_username"

	CodeSteamInvalidID Code = "steam.invalid_id"

	CodeXboxNotFound         Code = "xbox.not_found"
	CodeXboxBadResponse      Code = "xbox.bad_response"
	CodeXboxBadResponseCode  Code = "xbox.bad_response_code"
	CodeXboxRateLimited      Code = "xbox.rate_limited"

	CodeHytaleNotFound              Code = "hytale.not_found"
	CodeHytaleInvalidIdentifier     Code = "hytale.invalid_identifier"
	CodeHytaleAuthFailure           Code = "hytale.auth_failure"
	CodeHytaleNoRefreshToken        Code = "hytale.no_refresh_token"
	CodeHytaleSessionCreationFailed Code = "hytale.session_creation_failed"
	CodeHytaleNoProfiles            Code = "hytale.no_profiles"
)

var codeTable = map[Code]codeInfo{
	CodeNotFoundRoute: {message: "not found", status: 404},
	CodeUnknownError:  {message: "an unexpected error occurred", status: 500},

	// Minecraft
	"minecraft.invalid_username": {message: "invalid minecraft username or uuid", status: 400},
	"minecraft.api_failure":      {message: "failed to reach the minecraft identity service", status: 500},
	"minecraft.non_json":         {message: "minecraft identity service returned a non-json response", status: 500},
	"minecraft.rate_limited":     {message: "minecraft identity service rate limited this request", status: 429},

	// Steam
	"steam.invalid_id":     {message: "invalid steam id, steamid, or vanity url", status: 400},
	"steam.api_failure":    {message: "failed to reach the steam identity service", status: 500},
	"steam.non_json":       {message: "steam identity service returned a non-json response", status: 500},
	"steam.rate_limited":   {message: "steam identity service rate limited this request", status: 429},

	// Xbox
	"xbox.not_found":          {message: "xbox profile not found", status: 400},
	"xbox.bad_response":       {message: "xbox identity service returned an unrecognized response", status: 500},
	"xbox.bad_response_code":  {message: "xbox identity service returned an unexpected status code", status: 500},
	"xbox.api_failure":        {message: "failed to reach the xbox identity service", status: 500},
	"xbox.non_json":           {message: "xbox identity service returned a non-json response", status: 500},
	"xbox.rate_limited":       {message: "xbox identity service rate limited this request", status: 429},

	// Hytale
	"hytale.not_found":                {message: "hytale profile not found", status: 400},
	"hytale.invalid_identifier":       {message: "invalid hytale username or uuid", status: 400},
	"hytale.auth_failure":             {message: "hytale authentication failed", status: 500},
	"hytale.no_refresh_token":         {message: "no hytale refresh token is configured", status: 500},
	"hytale.session_creation_failed":  {message: "failed to mint a hytale game session", status: 500},
	"hytale.no_profiles":              {message: "the configured hytale account has no profiles", status: 500},
	"hytale.api_failure":              {message: "failed to reach the hytale identity service", status: 500},
	"hytale.non_json":                 {message: "hytale identity service returned a non-json response", status: 500},
	CodeHytaleRateLimit:                {message: "hytale session pool is exhausted and rate limited", status: 429},
}
