// Package identity holds the per-platform identifier canonicalizers
// (component E): the rules that turn a raw query string into the key used
// both for the cache and for the upstream call, before any network I/O
// happens.
package identity

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nodecraft/identity-gateway/internal/apperr"
)

var minecraftIdentifierPattern = regexp.MustCompile(`^[\w-]+$`)

// MinecraftRole distinguishes a profile lookup (by UUID) from a username
// lookup.
type MinecraftRole string

const (
	MinecraftRoleProfile  MinecraftRole = "profile"
	MinecraftRoleUsername MinecraftRole = "username"
)

// CanonicalizeMinecraft classifies q as a raw UUID, a dashed UUID, or a
// username, returning the role and the key used for cache + upstream
// lookups (lowercased, dashes stripped for the profile role).
func CanonicalizeMinecraft(q string) (key string, role MinecraftRole, err error) {
	if !minecraftIdentifierPattern.MatchString(q) {
		return "", "", apperr.Fail(apperr.CodeMinecraftInvalidUsername, nil)
	}

	switch len(q) {
	case 32:
		return strings.ToLower(q), MinecraftRoleProfile, nil
	case 36:
		return strings.ToLower(StripDashes(q)), MinecraftRoleProfile, nil
	default:
		return strings.ToLower(q), MinecraftRoleUsername, nil
	}
}

// StripDashes removes all '-' characters, used to derive a raw UUID (and
// RawID) from a dashed one; FormatUUID does the reverse.
func StripDashes(s string) string {
	return strings.ReplaceAll(s, "-", "")
}

// FormatUUID inserts standard dashes into a 32-character raw UUID:
// 8-4-4-4-12.
func FormatUUID(raw string) string {
	if len(raw) != 32 {
		return raw
	}
	return fmt.Sprintf("%s-%s-%s-%s-%s", raw[0:8], raw[8:12], raw[12:16], raw[16:20], raw[20:32])
}

// steamIDFormPrefixes are the prefixes that mark q as already an ID form
// rather than a vanity name.
var steamIDFormPrefixes = []string{"STEAM_", "7656119", "U:", "[U:"}

// LooksLikeSteamID reports whether q is already in one of the recognized
// SteamID textual forms, as opposed to a vanity name needing resolution.
func LooksLikeSteamID(q string) bool {
	for _, prefix := range steamIDFormPrefixes {
		if strings.HasPrefix(q, prefix) {
			return true
		}
	}
	return false
}

var xboxXUIDPattern = regexp.MustCompile(`^\d{1,16}$`)

// XboxRole distinguishes an XUID lookup from a gamertag lookup.
type XboxRole string

const (
	XboxRoleXUID     XboxRole = "xuid"
	XboxRoleGamertag XboxRole = "gamertag"
)

// CanonicalizeXbox classifies q as an XUID or a gamertag.
func CanonicalizeXbox(q string) XboxRole {
	if xboxXUIDPattern.MatchString(q) {
		return XboxRoleXUID
	}
	return XboxRoleGamertag
}

var (
	hytaleUsernamePattern = regexp.MustCompile(`^\w{3,16}$`)
	hytaleUUIDPattern     = regexp.MustCompile(`^[\da-f]{8}(-?[\da-f]{4}){3}-?[\da-f]{12}$`)
)

// HytaleRole distinguishes a UUID lookup from a username lookup.
type HytaleRole string

const (
	HytaleRoleUUID     HytaleRole = "uuid"
	HytaleRoleUsername HytaleRole = "username"
)

// CanonicalizeHytale validates q against the username and UUID patterns
// and classifies it.
func CanonicalizeHytale(q string) (HytaleRole, error) {
	lower := strings.ToLower(q)
	switch {
	case hytaleUUIDPattern.MatchString(lower):
		return HytaleRoleUUID, nil
	case hytaleUsernamePattern.MatchString(q):
		return HytaleRoleUsername, nil
	default:
		return "", apperr.Fail(apperr.CodeHytaleInvalidIdentifier, nil)
	}
}

// CacheKey builds the canonical "<platform>-<role>-<identifier>" cache key.
func CacheKey(platform, role, identifier string) string {
	return fmt.Sprintf("%s-%s-%s", platform, role, strings.ToLower(identifier))
}
