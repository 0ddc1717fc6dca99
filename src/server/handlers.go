// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/felixrowen/mail-checker/src/mailcheck"
	"github.com/felixrowen/mail-checker/src/store"
)

// CheckRequest is the body of the check routes.
type CheckRequest struct {
	Domain string `json:"domain"`
}

// MailEchoData is the data of a successful mail echo response.
type MailEchoData struct {
	Domain   string                   `json:"domain"`
	MailEcho mailcheck.MailEchoResult `json:"mail_echo"`
}

func (s *Server) health(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{"status": "UP"})
}

// checkDomain runs the four checks and stores the result for the caller.
func (s *Server) checkDomain(c *gin.Context) {
	domain, ok := bindDomain(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.requestTimeout)
	defer cancel()

	result, err := s.engine.CheckDomain(ctx, domain)
	if err != nil {
		s.engineFailed(c, "check", domain, err)
		return
	}

	rec, err := s.records.Save(ctx, c.GetString(userKey), domain, result)
	if err != nil {
		c.Error(err)
		fail(c, http.StatusInternalServerError, "Could not save check result")
		return
	}

	respond(c, http.StatusOK, rec)
}

// mailEcho opens a live SMTP session with the domain's primary MX.
// The result is not stored.
func (s *Server) mailEcho(c *gin.Context) {
	domain, ok := bindDomain(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.requestTimeout)
	defer cancel()

	result, err := s.engine.MailEcho(ctx, domain)
	if err != nil {
		s.engineFailed(c, "mail echo", domain, err)
		return
	}

	respond(c, http.StatusOK, MailEchoData{Domain: domain, MailEcho: result})
}

func (s *Server) listHistory(c *gin.Context) {
	records, err := s.records.ListByUser(c.Request.Context(), c.GetString(userKey))
	if err != nil {
		c.Error(err)
		fail(c, http.StatusInternalServerError, "Could not load history")
		return
	}
	respond(c, http.StatusOK, records)
}

func (s *Server) getHistory(c *gin.Context) {
	rec, err := s.records.Get(c.Request.Context(), c.GetString(userKey), c.Param("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		fail(c, http.StatusNotFound, "Check record not found")
	case err != nil:
		c.Error(err)
		fail(c, http.StatusInternalServerError, "Could not load check record")
	default:
		respond(c, http.StatusOK, rec)
	}
}

func (s *Server) deleteHistory(c *gin.Context) {
	id := c.Param("id")
	err := s.records.Delete(c.Request.Context(), c.GetString(userKey), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		fail(c, http.StatusNotFound, "Check record not found")
	case err != nil:
		c.Error(err)
		fail(c, http.StatusInternalServerError, "Could not delete check record")
	default:
		respond(c, http.StatusOK, gin.H{"id": id})
	}
}

// bindDomain decodes a [CheckRequest] and normalizes its domain. On
// failure it writes a 400 response and returns false.
func bindDomain(c *gin.Context) (string, bool) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failFields(c, http.StatusBadRequest, "Invalid request", map[string][]string{
			"body": {err.Error()},
		})
		return "", false
	}

	if strings.TrimSpace(req.Domain) == "" {
		failFields(c, http.StatusBadRequest, "Invalid request", map[string][]string{
			"domain": {"is required"},
		})
		return "", false
	}

	domain, err := mailcheck.NormalizeDomain(req.Domain)
	if err != nil {
		failFields(c, http.StatusBadRequest, "Invalid request", map[string][]string{
			"domain": {"is not a valid domain"},
		})
		return "", false
	}
	return domain, true
}

// engineFailed maps an engine error to a response. Input errors are the
// caller's fault; anything else means the check could not run.
func (s *Server) engineFailed(c *gin.Context, op, domain string, err error) {
	c.Error(err)

	switch {
	case errors.Is(err, mailcheck.ErrInvalidDomain):
		failFields(c, http.StatusBadRequest, "Invalid request", map[string][]string{
			"domain": {"is not a valid domain"},
		})
	case errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn(op+" timed out", slog.String("domain", domain))
		fail(c, http.StatusGatewayTimeout, "Domain check timed out")
	default:
		s.logger.Error(op+" failed", slog.String("domain", domain), slog.Any("error", err))
		fail(c, http.StatusBadGateway, "Domain check failed")
	}
}
