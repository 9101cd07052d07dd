package remove_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/extagger/internal/app/remove"
	"github.com/slok/extagger/internal/log"
	"github.com/slok/extagger/internal/model"
	"github.com/slok/extagger/internal/storage/storagemock"
)

const testULID = "01JA3Y6M5Z8K2Q4W6E8R0T2Y4V"

func TestNewService(t *testing.T) {
	tests := map[string]struct {
		config remove.ServiceConfig
		expErr bool
	}{
		"A valid config should not fail.": {
			config: remove.ServiceConfig{Repository: &storagemock.MockRepository{}, Logger: log.Noop},
		},

		"A missing repository should fail.": {
			config: remove.ServiceConfig{},
			expErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := remove.NewService(tt.config)
			if tt.expErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestServiceRun(t *testing.T) {
	tests := map[string]struct {
		nameOrID   string
		setupMocks func(repo *storagemock.MockRepository)
		expName    string
		expErr     bool
		expErrIs   error
	}{
		"Removing by name should delete the handler.": {
			nameOrID: "ocr",
			setupMocks: func(repo *storagemock.MockRepository) {
				repo.On("GetHandlerByName", mock.Anything, "ocr").Once().Return(&model.Handler{ID: testULID, Name: "ocr"}, nil)
				repo.On("DeleteHandler", mock.Anything, testULID).Once().Return(nil)
			},
			expName: "ocr",
		},

		"Removing by ID should delete the handler.": {
			nameOrID: testULID,
			setupMocks: func(repo *storagemock.MockRepository) {
				repo.On("GetHandlerByName", mock.Anything, testULID).Once().Return(nil, model.ErrNotFound)
				repo.On("GetHandler", mock.Anything, testULID).Once().Return(&model.Handler{ID: testULID, Name: "ocr"}, nil)
				repo.On("DeleteHandler", mock.Anything, testULID).Once().Return(nil)
			},
			expName: "ocr",
		},

		"Removing a missing handler should fail with not found.": {
			nameOrID: "missing",
			setupMocks: func(repo *storagemock.MockRepository) {
				repo.On("GetHandlerByName", mock.Anything, "missing").Once().Return(nil, model.ErrNotFound)
			},
			expErr:   true,
			expErrIs: model.ErrNotFound,
		},

		"A delete error should fail.": {
			nameOrID: "ocr",
			setupMocks: func(repo *storagemock.MockRepository) {
				repo.On("GetHandlerByName", mock.Anything, "ocr").Once().Return(&model.Handler{ID: testULID, Name: "ocr"}, nil)
				repo.On("DeleteHandler", mock.Anything, testULID).Once().Return(fmt.Errorf("something"))
			},
			expErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			repo := storagemock.NewMockRepository(t)
			tt.setupMocks(repo)

			svc, err := remove.NewService(remove.ServiceConfig{Repository: repo})
			require.NoError(t, err)

			h, err := svc.Run(context.TODO(), remove.Request{NameOrID: tt.nameOrID})

			if tt.expErr {
				require.Error(t, err)
				if tt.expErrIs != nil {
					assert.True(t, errors.Is(err, tt.expErrIs))
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expName, h.Name)
			}
		})
	}
}
