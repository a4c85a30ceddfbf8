package rews

import (
	"context"
	"net/http"
	"net/url"
)

type (
	// OpenConnectionParams is what a dial attempt needs: the target URL and
	// the headers to present.
	OpenConnectionParams struct {
		URL    url.URL
		Header http.Header
	}

	OpenConnectionParamsGetter func(ctx context.Context) (OpenConnectionParams, error)

	// OpenConnectionParamsRepo resolves dial parameters for every connection
	// attempt, so credentials or signed URLs can be refreshed per reconnect.
	OpenConnectionParamsRepo struct {
		logger Logger
		getter OpenConnectionParamsGetter
	}
)

func (r OpenConnectionParamsRepo) Get(
	ctx context.Context,
) (params OpenConnectionParams, err error) {
	params, err = r.getter(ctx)
	if err != nil {
		r.logger.Errorf("cannot fetch open connection params: %s", err)
	}
	return
}

func NewOpenConnectionParamsRepo(
	logger Logger,
	getter OpenConnectionParamsGetter,
) OpenConnectionParamsRepo {
	return OpenConnectionParamsRepo{getter: getter, logger: logger}
}

// NewStaticConnectionParamsRepo always dials the same address.
func NewStaticConnectionParamsRepo(
	logger Logger,
	u url.URL,
	header http.Header,
) OpenConnectionParamsRepo {
	return NewOpenConnectionParamsRepo(logger, func(context.Context) (OpenConnectionParams, error) {
		return OpenConnectionParams{URL: u, Header: header}, nil
	})
}
