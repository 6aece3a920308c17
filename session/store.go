package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/authemhq/authem/internal"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every transport-level Redis failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrTokenExists is returned when session creation hits an occupied token
// key. Generation draws from a 256-bit space, so this is vanishingly rare;
// the caller regenerates and retries.
var ErrTokenExists = errors.New("session token already exists")

const (
	findStatusNotFound      int64 = 0
	findStatusExpired       int64 = 1
	findStatusTokenMismatch int64 = 2
	findStatusRenewed       int64 = 3
)

// The session blob has a fixed numeric header (see encoder.go): ttl at
// bytes 2..9, updatedAt at 18..25, expiresAt at 26..33, strings from 34.
// The scripts below rely on those offsets to check expiry, compare the
// stored client token, and renew in place — all within one atomic step, so
// concurrent lookups of the same session cannot lose renewals and a
// client-token mismatch can never extend expiry.
const luaSessionHelpers = `
local function read_be64(s, i)
  local b1 = string.byte(s, i)
  local b2 = string.byte(s, i + 1)
  local b3 = string.byte(s, i + 2)
  local b4 = string.byte(s, i + 3)
  local b5 = string.byte(s, i + 4)
  local b6 = string.byte(s, i + 5)
  local b7 = string.byte(s, i + 6)
  local b8 = string.byte(s, i + 7)
  if not b8 then
    return nil
  end
  return ((((((((b1 * 256) + b2) * 256 + b3) * 256 + b4) * 256 + b5) * 256 + b6) * 256 + b7) * 256 + b8)
end

local function write_be64(n)
  local b = {}
  for i = 8, 1, -1 do
    local r = n % 256
    b[i] = r
    n = (n - r) / 256
  end
  return string.char(b[1], b[2], b[3], b[4], b[5], b[6], b[7], b[8])
end

local function read_string(data, idx)
  local len = string.byte(data, idx)
  if not len then
    return nil, idx
  end
  if #data < idx + len then
    return nil, idx
  end
  return string.sub(data, idx + 1, idx + len), idx + 1 + len
end

local function parse_session(data)
  if string.byte(data, 1) ~= 1 then
    return nil
  end

  local ttl = read_be64(data, 2)
  local expires_at = read_be64(data, 26)
  if not ttl or not expires_at then
    return nil
  end

  local idx = 34
  local role, stype, sid, client_token
  role, idx = read_string(data, idx)
  stype, idx = read_string(data, idx)
  sid, idx = read_string(data, idx)
  client_token, idx = read_string(data, idx)
  if not role or not stype or not sid or client_token == nil then
    return nil
  end

  return {
    ttl = ttl,
    expires_at = expires_at,
    role = role,
    subject_type = stype,
    subject_id = sid,
    client_token = client_token
  }
end

local function decrement_count(count_key)
  local count = tonumber(redis.call("GET", count_key) or "0")
  if count > 1 then
    redis.call("DECR", count_key)
  elseif count == 1 then
    redis.call("DEL", count_key)
  end
end

local function drop_session(session_key, count_key, subject_prefix, parsed, member)
  local existed = redis.call("DEL", session_key)
  local subject_key = subject_prefix .. parsed.subject_type .. ":" .. parsed.subject_id
  redis.call("SREM", subject_key, member)
  if existed == 1 then
    decrement_count(count_key)
  end
  return existed
end
`

const findActiveScript = luaSessionHelpers + `
local session_key = KEYS[1]
local count_key = KEYS[2]
local member = ARGV[1]
local subject_prefix = ARGV[2]
local verify = ARGV[3]
local provided_token = ARGV[4]
local now_unix = tonumber(ARGV[5])

local data = redis.call("GET", session_key)
if not data then
  return {0}
end

local parsed = parse_session(data)
if not parsed then
  redis.call("DEL", session_key)
  return {0}
end

if parsed.expires_at <= now_unix then
  drop_session(session_key, count_key, subject_prefix, parsed, member)
  return {1}
end

if verify == "1" and parsed.client_token ~= provided_token then
  return {2}
end

local new_expires = now_unix + parsed.ttl
local updated = string.sub(data, 1, 17) .. write_be64(now_unix) .. write_be64(new_expires) .. string.sub(data, 34)
redis.call("SET", session_key, updated, "PX", parsed.ttl * 1000)

return {3, updated}
`

const deleteByTokenScript = luaSessionHelpers + `
local session_key = KEYS[1]
local count_key = KEYS[2]
local member = ARGV[1]
local subject_prefix = ARGV[2]
local verify = ARGV[3]
local provided_token = ARGV[4]

local data = redis.call("GET", session_key)
if not data then
  return 0
end

local parsed = parse_session(data)
if not parsed then
  redis.call("DEL", session_key)
  return 0
end

if verify == "1" and parsed.client_token ~= provided_token then
  return 0
end

return drop_session(session_key, count_key, subject_prefix, parsed, member)
`

var (
	findActiveLua    = redis.NewScript(findActiveScript)
	deleteByTokenLua = redis.NewScript(deleteByTokenScript)
)

// Store is the Redis-backed session store: creation with collision
// rejection, active lookup with atomic renew-on-use, idempotent deletion by
// token, and bulk invalidation by subject.
//
// "Active" always means expiresAt > now at query time. The Redis key TTL
// mirrors the logical expiry so expired rows also vanish physically, but
// the in-script expiry check is authoritative.
type Store struct {
	redis  redis.UniversalClient
	prefix string

	// now and newToken are swapped in store tests to drive expiry,
	// renewal, and collision behavior; every script receives now's value
	// as an argument.
	now            func() time.Time
	newToken       func() (string, error)
	newClientToken func() (string, error)
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the Redis key namespace for session rows.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	return &Store{
		redis:          client,
		prefix:         prefix,
		now:            time.Now,
		newToken:       internal.NewToken,
		newClientToken: internal.NewClientToken,
	}
}

func (s *Store) key(role, token string) string {
	return s.prefix + ":" + role + ":" + token
}

func (s *Store) subjectKey(subjectType, subjectID string) string {
	return "asub:" + subjectType + ":" + subjectID
}

func (s *Store) subjectKeyPrefix() string {
	return "asub:"
}

func (s *Store) countKey(role string) string {
	return "acnt:" + role
}

// Index members pair the role with the token so one subject set covers all
// roles. Tokens are base64url and never contain ":".
func member(role, token string) string {
	return role + ":" + token
}

func splitMember(m string) (role, token string, ok bool) {
	i := strings.LastIndex(m, ":")
	if i < 0 {
		return "", "", false
	}
	return m[:i], m[i+1:], true
}

// Create generates a fresh token (and, when withClientToken is set, a fresh
// client token), inserts the session with expiresAt = now + ttl, and indexes
// it by subject. Insertion on an occupied token key fails with
// [ErrTokenExists] without touching the existing row.
func (s *Store) Create(ctx context.Context, role, subjectType, subjectID string, ttl time.Duration, withClientToken bool) (*Session, error) {
	token, err := s.newToken()
	if err != nil {
		return nil, err
	}

	clientToken := ""
	if withClientToken {
		clientToken, err = s.newClientToken()
		if err != nil {
			return nil, err
		}
	}

	now := s.now()
	sess := &Session{
		Role:        role,
		SubjectType: subjectType,
		SubjectID:   subjectID,
		Token:       token,
		ClientToken: clientToken,
		TTL:         int64(ttl / time.Second),
		CreatedAt:   now.Unix(),
		UpdatedAt:   now.Unix(),
		ExpiresAt:   now.Add(ttl).Unix(),
	}

	data, err := Encode(sess)
	if err != nil {
		return nil, err
	}

	ok, err := s.redis.SetNX(ctx, s.key(role, token), data, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !ok {
		return nil, ErrTokenExists
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, s.subjectKey(subjectType, subjectID), member(role, token))
		pipe.Incr(ctx, s.countKey(role))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return sess, nil
}

// FindActive returns the unique active session matching role and token, or
// (nil, nil) when no such session exists. When verifyClientToken is set the
// stored client token must also match; a mismatch resolves to absent and
// does not renew.
//
// On a match the session's expiry is atomically extended to now + ttl
// before returning — callers rely on this renew-on-use side effect.
func (s *Store) FindActive(ctx context.Context, role, token, clientToken string, verifyClientToken bool) (*Session, error) {
	result, err := findActiveLua.Run(
		ctx,
		s.redis,
		[]string{s.key(role, token), s.countKey(role)},
		member(role, token),
		s.subjectKeyPrefix(),
		boolArg(verifyClientToken),
		clientToken,
		s.now().Unix(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid lookup script response", ErrRedisUnavailable)
	}

	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid lookup script status", ErrRedisUnavailable)
	}

	switch code {
	case findStatusNotFound, findStatusExpired, findStatusTokenMismatch:
		// Expired or mismatched lookups are not errors; they resolve to
		// absent and trigger normal unauthenticated handling.
		return nil, nil
	case findStatusRenewed:
		if len(parts) < 2 {
			return nil, fmt.Errorf("%w: missing renewed session payload", ErrRedisUnavailable)
		}

		var blob []byte
		switch v := parts[1].(type) {
		case string:
			blob = []byte(v)
		case []byte:
			blob = v
		default:
			return nil, fmt.Errorf("%w: invalid renewed session payload", ErrRedisUnavailable)
		}

		sess, decErr := Decode(blob)
		if decErr != nil {
			return nil, decErr
		}
		sess.Token = token
		return sess, nil
	default:
		return nil, fmt.Errorf("%w: unknown lookup script status", ErrRedisUnavailable)
	}
}

// DeleteByToken removes the session matching role and token (and client
// token, when verification is on). Deleting a non-existent session is not
// an error.
func (s *Store) DeleteByToken(ctx context.Context, role, token, clientToken string, verifyClientToken bool) error {
	if token == "" {
		return nil
	}

	_, err := deleteByTokenLua.Run(
		ctx,
		s.redis,
		[]string{s.key(role, token), s.countKey(role)},
		member(role, token),
		s.subjectKeyPrefix(),
		boolArg(verifyClientToken),
		clientToken,
	).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// DeleteAllForSubject removes every session for the subject, optionally
// scoped to one role (empty role means all roles). Used for "sign out
// everywhere" and force-expiring a record.
//
// ATOMICITY NOTE: this reads the subject's session set, checks which rows
// still exist, then deletes them. A session created between the read and
// delete phases is not captured; it will expire naturally or be caught by
// the next call. This matches the housekeeping-grade guarantee the bulk
// path needs.
func (s *Store) DeleteAllForSubject(ctx context.Context, subjectType, subjectID, role string) error {
	subjectKey := s.subjectKey(subjectType, subjectID)

	members, err := s.redis.SMembers(ctx, subjectKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	type target struct {
		member string
		role   string
		key    string
	}

	var targets []target
	for _, m := range members {
		memberRole, token, ok := splitMember(m)
		if !ok {
			continue
		}
		if role != "" && memberRole != role {
			continue
		}
		targets = append(targets, target{member: m, role: memberRole, key: s.key(memberRole, token)})
	}
	if len(targets) == 0 {
		return nil
	}

	pipe := s.redis.Pipeline()
	existsCmds := make([]*redis.IntCmd, len(targets))
	for i, t := range targets {
		existsCmds[i] = pipe.Exists(ctx, t.key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	existingByRole := make(map[string]int)
	for i, cmd := range existsCmds {
		v, cmdErr := cmd.Result()
		if cmdErr != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}
		existingByRole[targets[i].role] += int(v)
	}

	decrements := make(map[string]int, len(existingByRole))
	for memberRole, existing := range existingByRole {
		current, err := s.Count(ctx, memberRole)
		if err != nil {
			return err
		}
		decrement := existing
		if decrement > current {
			decrement = current
		}
		decrements[memberRole] = decrement
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		keys := make([]string, len(targets))
		removed := make([]interface{}, len(targets))
		for i, t := range targets {
			keys[i] = t.key
			removed[i] = t.member
		}
		pipe.Del(ctx, keys...)
		if role == "" {
			pipe.Del(ctx, subjectKey)
		} else {
			pipe.SRem(ctx, subjectKey, removed...)
		}
		for memberRole, decrement := range decrements {
			if decrement > 0 {
				pipe.DecrBy(ctx, s.countKey(memberRole), int64(decrement))
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Count returns the tracked number of sessions for a role.
func (s *Store) Count(ctx context.Context, role string) (int, error) {
	count, err := s.redis.Get(ctx, s.countKey(role)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// ActiveSessionCount returns the number of tracked sessions for a subject
// across all roles.
func (s *Store) ActiveSessionCount(ctx context.Context, subjectType, subjectID string) (int, error) {
	count, err := s.redis.SCard(ctx, s.subjectKey(subjectType, subjectID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func boolArg(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
