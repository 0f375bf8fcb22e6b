package session

import (
	"context"

	"github.com/jmcleod/keywarden/crypto"
	"github.com/jmcleod/keywarden/secstore"
	"github.com/jmcleod/keywarden/transport"
)

// solved carries the outcome of a successful challenge solve into the
// open-session step.
type solved struct {
	password string
	solution string
	remember bool
}

func (c *Controller) endpoint() transport.Endpoint {
	return transport.Endpoint{
		Server:    c.session.Server,
		User:      c.session.User,
		SessionID: c.session.SessionID(),
	}
}

// requestSession is the protocol's first step, triggered by the session's
// pending-requests signal. It clears any prior session ID and asks the server
// for a session. The busy flag guards against a second in-flight
// request/open pair for the same session.
func (c *Controller) requestSession() {
	if c.session == nil || c.busy {
		return
	}
	c.busy = true
	c.setError(false)
	c.session.setSessionID("")

	gen := c.gen
	ep := c.endpoint()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.requestTimeout)
		defer cancel()
		reply, err := c.client.RequestSession(ctx, ep)
		c.postGen(gen, func() { c.handleSessionReply(reply, err) })
	}()
}

func (c *Controller) handleSessionReply(reply *transport.SessionReply, err error) {
	if err != nil || reply == nil {
		c.busy = false
		c.logger.Warn("session request failed", "error", err)
		c.setError(true)
		return
	}
	c.session.setSessionID(reply.SessionID)

	if reply.Challenge == nil {
		// Unauthenticated path: straight to open.
		c.openSession(nil)
		return
	}

	c.busy = false
	c.challenge = reply.Challenge
	c.setChallengeAvailable(true)
	if password, ok := c.challengePassword(); ok {
		c.solveChallenge(password, false)
	}
}

// solveChallenge answers the pending challenge, or decrypts the persisted
// offline keychain when no challenge is pending. Runs on the owner goroutine.
func (c *Controller) solveChallenge(password string, remember bool) {
	c.setChallengeAvailable(false)

	if c.challenge != nil {
		solution, err := crypto.SolvePWD(c.challenge, password)
		if err != nil {
			// The password is not re-offered; the caller retries with a
			// fresh SolveChallenge call against the still-pending challenge.
			c.logger.Warn("challenge solve failed", "error", err)
			if err := c.store.Remove(secstore.KeyChallengePassword); err != nil {
				c.logger.Warn("removing challenge password", "error", err)
			}
			c.setError(true)
			return
		}
		c.challenge = nil
		c.openSession(&solved{password: password, solution: solution, remember: remember})
		return
	}

	blob, ok, err := c.store.Load(secstore.KeyOfflineKeychain)
	if err != nil {
		c.logger.Warn("loading offline keychain", "error", err)
		c.setError(true)
		return
	}
	if !ok {
		return
	}

	kc, err := crypto.DecryptKeychain(blob, password)
	if err != nil {
		c.rejectPassword()
		return
	}

	// Offline branch: no network round trip needed.
	c.installKeychain(kc, password, remember)
	c.setError(false)
	c.runPendingCompletions()
}

// openSession sends the open-session call, carrying the challenge solution
// when one was just solved.
func (c *Controller) openSession(sv *solved) {
	c.busy = true
	gen := c.gen
	ep := c.endpoint()
	solution := ""
	if sv != nil {
		solution = sv.solution
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.requestTimeout)
		defer cancel()
		reply, err := c.client.OpenSession(ctx, ep, solution)
		c.postGen(gen, func() { c.handleOpenReply(reply, err, sv) })
	}()
}

func (c *Controller) handleOpenReply(reply *transport.OpenReply, err error, sv *solved) {
	c.busy = false
	if err != nil || reply == nil {
		c.logger.Warn("session open failed", "error", err)
		c.setError(true)
		return
	}

	if sv != nil {
		blob, hasKeys := reply.Keys[crypto.SchemeCSE]
		if !reply.Success || !hasKeys {
			// The solve already verified the password, so a rejection here
			// means the server disagrees with the challenge material.
			// Treated identically to a wrong password.
			c.rejectPassword()
			return
		}
		c.persist(secstore.KeyOfflineKeychain, blob)
		kc, err := crypto.DecryptKeychain(blob, sv.password)
		if err != nil {
			c.rejectPassword()
			return
		}
		c.installKeychain(kc, sv.password, sv.remember)
	} else if !reply.Success {
		c.setError(true)
		return
	}

	c.setError(false)
	c.armKeepalive()
	c.runPendingRequests()
}

// rejectPassword re-offers the challenge UI and purges the persisted
// challenge password so a known-wrong value is not offered again.
func (c *Controller) rejectPassword() {
	c.setChallengeAvailable(true)
	if err := c.store.Remove(secstore.KeyChallengePassword); err != nil {
		c.logger.Warn("removing challenge password", "error", err)
	}
	c.notifier.Notify(incorrectPasswordTitle, incorrectPasswordMessage)
}

// installKeychain puts the decrypted keychain on the session and caches the
// password that opened it, optionally persisting it as the challenge password.
func (c *Controller) installKeychain(kc *crypto.Keychain, password string, remember bool) {
	c.session.setKeychain(kc)
	c.cache.Set(password)
	if remember {
		c.persist(secstore.KeyChallengePassword, []byte(password))
	}
}

// requestKeychain reacts to the pending-completions signal. When the session
// already holds a live keychain and no offline blob exists there is nothing
// to decrypt, so the queued completions simply run.
func (c *Controller) requestKeychain() {
	if c.session == nil {
		return
	}
	_, hasBlob, err := c.store.Load(secstore.KeyOfflineKeychain)
	if err != nil {
		c.logger.Warn("loading offline keychain", "error", err)
		c.setError(true)
		return
	}
	if !hasBlob && c.session.Keychain() != nil {
		c.runPendingCompletions()
		return
	}
	if password, ok := c.challengePassword(); ok {
		c.solveChallenge(password, false)
		return
	}
	c.setChallengeAvailable(true)
}

// challengePassword returns the persisted challenge password, or the one
// still live in the credential cache.
func (c *Controller) challengePassword() (string, bool) {
	if stored, ok, err := c.store.Load(secstore.KeyChallengePassword); err == nil && ok {
		return string(stored), true
	}
	return c.cache.Get()
}

// Queued work runs off the owner goroutine, in queue order, so a work item
// may call back into the controller without deadlocking the run loop.
func (c *Controller) runPendingRequests() {
	runQueued(c.session.takePendingRequests())
}

func (c *Controller) runPendingCompletions() {
	runQueued(c.session.takePendingCompletions())
}

func runQueued(fns []func()) {
	if len(fns) == 0 {
		return
	}
	go func() {
		for _, fn := range fns {
			fn()
		}
	}()
}

// armKeepalive schedules the next heartbeat, replacing any live timer.
func (c *Controller) armKeepalive() {
	gen := c.gen
	c.keepalive.Arm(c.keepaliveEvery, func() {
		c.postGen(gen, c.sendKeepalive)
	})
}

// sendKeepalive issues the heartbeat. Failures are silent and the timer is
// not rearmed: the next pending-request signal re-authenticates if the
// session actually died.
func (c *Controller) sendKeepalive() {
	if c.session == nil {
		return
	}
	gen := c.gen
	ep := c.endpoint()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.requestTimeout)
		defer cancel()
		reply, err := c.client.KeepaliveSession(ctx, ep)
		c.postGen(gen, func() {
			if err != nil || reply == nil || !reply.Success {
				c.logger.Debug("keepalive failed", "error", err)
				return
			}
			c.armKeepalive()
		})
	}()
}

// closeRemote sends the close-session call off the owner goroutine. The
// response is ignored except as the trigger to clear certificate trust.
func (c *Controller) closeRemote(ep transport.Endpoint) {
	ctx, cancel := context.WithTimeout(context.Background(), c.requestTimeout)
	defer cancel()
	_ = c.client.CloseSession(ctx, ep)
	c.trust.Clear()
}
