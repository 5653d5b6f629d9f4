package connector

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/mensylisir/remoteify/pkg/logger"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

// dialSSHFunc returns the target client and, when a bastion was used, the bastion client.
type dialSSHFunc func(ctx context.Context, cfg ConnectionCfg) (*ssh.Client, *ssh.Client, error)

var currentDialer dialSSHFunc = dialSSH

func dialSSH(ctx context.Context, cfg ConnectionCfg) (*ssh.Client, *ssh.Client, error) {
	targetSSHConfig, err := clientConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	targetDialAddr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.port()))

	if cfg.Bastion != nil {
		return dialViaBastion(ctx, targetDialAddr, targetSSHConfig, cfg.bastionTarget())
	}

	dialer := net.Dialer{Timeout: cfg.timeout()}
	conn, err := dialer.DialContext(ctx, "tcp", targetDialAddr)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Wrap(ctxErr, err.Error())
		}
		return nil, nil, &ConnectionError{Host: cfg.Host, Stage: StageConnect, Err: errors.Wrap(err, "direct dial failed")}
	}
	client, err := handshake(ctx, conn, targetDialAddr, targetSSHConfig)
	if err != nil {
		conn.Close()
		return nil, nil, classifyHandshakeError(cfg.Host, err)
	}
	return client, nil, nil
}

func dialViaBastion(ctx context.Context, targetDialAddr string, targetSSHConfig *ssh.ClientConfig, bastionCfg ConnectionCfg) (*ssh.Client, *ssh.Client, error) {
	bastionClient, _, err := dialSSH(ctx, bastionCfg)
	if err != nil {
		return nil, nil, err
	}

	connToTarget, err := bastionClient.Dial("tcp", targetDialAddr)
	if err != nil {
		bastionClient.Close()
		return nil, nil, &ConnectionError{Host: targetDialAddr, Stage: StageConnect, Err: errors.Wrap(err, "dial target via bastion failed")}
	}

	targetClient, err := handshake(ctx, connToTarget, targetDialAddr, targetSSHConfig)
	if err != nil {
		connToTarget.Close()
		bastionClient.Close()
		return nil, nil, classifyHandshakeError(targetDialAddr, err)
	}
	return targetClient, bastionClient, nil
}

func clientConfig(cfg ConnectionCfg) (*ssh.ClientConfig, error) {
	authMethods, err := buildAuthMethods(cfg)
	if err != nil {
		return nil, &ConnectionError{Host: cfg.Host, Stage: StageAuth, Err: err}
	}

	sshConfig := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            authMethods,
		HostKeyCallback: cfg.HostKeyCallback,
		Timeout:         cfg.timeout(),
	}
	if sshConfig.HostKeyCallback == nil {
		logger.Get().Warnf("HostKeyCallback is not set for host %s. Using InsecureIgnoreHostKey(). This is NOT recommended for production.", cfg.Host)
		sshConfig.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	}
	return sshConfig, nil
}

func buildAuthMethods(cfg ConnectionCfg) ([]ssh.AuthMethod, error) {
	if cfg.Auth == nil {
		return nil, errors.Errorf("no SSH authentication method provided (password or private key required for host %s)", cfg.Host)
	}
	method, err := cfg.Auth.authMethod()
	if err != nil {
		return nil, err
	}
	return []ssh.AuthMethod{method}, nil
}

// handshake runs the SSH handshake on conn, aborting when ctx is done or the
// configured timeout elapses.
func handshake(ctx context.Context, conn net.Conn, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	if config.Timeout > 0 {
		conn.SetDeadline(time.Now().Add(config.Timeout))
	}
	stopCh := make(chan struct{})
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		select {
		case <-ctx.Done():
			conn.SetDeadline(time.Unix(1, 0))
		case <-stopCh:
		}
	}()

	ncc, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	close(stopCh)
	<-watcherDone
	if err == nil {
		err = ctx.Err()
		if err != nil {
			ncc.Close()
		}
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && ctxErr != err {
			return nil, errors.Wrap(ctxErr, err.Error())
		}
		return nil, err
	}
	conn.SetDeadline(time.Time{})
	return ssh.NewClient(ncc, chans, reqs), nil
}

func classifyHandshakeError(host string, err error) error {
	stage := StageConnect
	if strings.Contains(err.Error(), "unable to authenticate") {
		stage = StageAuth
	}
	return &ConnectionError{Host: host, Stage: stage, Err: errors.Wrap(err, "SSH handshake failed")}
}
